package service

import "time"

// SetClock подменяет источник времени в тестах
func (m *PartitionMaintainer) SetClock(now func() time.Time) {
	m.now = now
}

// WithClock возвращает копию сервиса авторизации с подменённым временем
func WithClock(s AuthService, now func() time.Time) AuthService {
	copied := *s.(*authService)
	copied.now = now
	return &copied
}
