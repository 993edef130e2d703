package middleware

// Visitors открывает тестам количество клиентов в лимитере
func (rl *RateLimiter) Visitors() int {
	return rl.visitorCount()
}
