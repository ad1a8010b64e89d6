package models

const (
	// DefaultPageSize размер страницы списков по умолчанию
	DefaultPageSize = 10

	// RateLimitRequests количество запросов в окне
	RateLimitRequests = 30

	// RateLimitWindow окно ограничения частоты запросов в секундах
	RateLimitWindow = 60

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// SheetsCacheTTL время жизни кэша строк Google Sheets в секундах
	SheetsCacheTTL = 60 * 60
)
