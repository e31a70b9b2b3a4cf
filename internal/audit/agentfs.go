package audit

/*
Файл agentfs.go реализует компонент Agent File System — высокопроизводительный
движок для сбора и персистентности решений пайплайна (Audit Trail).

Ключевые особенности архитектуры:
- Non-blocking Logging: Использование неблокирующих каналов для передачи записей
  из Hot Path шлюза. Это гарантирует, что задержки записи в БД не влияют на Response Time.
- Batching & Efficiency: Накопление записей в памяти и пакетная запись (Bulk Insert)
  в PostgreSQL по таймеру или при достижении лимита (100 записей).
- Drain Pattern & Graceful Shutdown: Реализован механизм полной вычитки буфера
  при остановке сервиса. С помощью sync.WaitGroup и закрытия каналов гарантируется
  Final Flush — отсутствие потерь данных при перезагрузке системы.
- Reliability: Устойчивость к кратковременным сбоям БД за счет изоляции воркера
  и использования контекста Background для завершающих операций.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться записи
type StorageInterface interface {
	// WriteBatch сохраняет пачку решений за один раз
	WriteBatch(ctx context.Context, records []DecisionRecord) error
}

type Sink interface {
	Log(record DecisionRecord)
}

type AgentFS struct {
	ch            chan DecisionRecord // Буфер для асинхронности
	repo          StorageInterface    // Интерфейс для Postgres/ClickHouse
	logger        *zap.Logger
	flushInterval time.Duration
	wg            sync.WaitGroup
	// «Железобетонная» защита (Bulletproof) вдруг кто-то вызовет Log случайно после остановки
	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewAgentFS(repo StorageInterface, bufferSize int, flushInterval time.Duration, logger *zap.Logger) *AgentFS {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	return &AgentFS{
		ch:            make(chan DecisionRecord, bufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "agentfs")),
		flushInterval: flushInterval,
	}
}

func (fs *AgentFS) Start() {
	fs.wg.Add(1)
	go fs.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (fs *AgentFS) Stop() {
	// 1. Сначала ставим флаг
	atomic.StoreInt32(&fs.isClosed, 1)

	// 2. Даем крошечную паузу, чтобы текущие Log успели проскочить
	time.Sleep(10 * time.Millisecond)

	// 3. Закрываем (Drain Pattern). Завершение горутины происходит исключительно через закрытие входного канала.
	fs.logger.Info("stopping auditor: closing channel and flushing buffer...")
	close(fs.ch) // Новые записи больше не принимаются.
	fs.wg.Wait() // Ждем, пока воркер вычитает остатки из канала и вызовет flush().
	fs.logger.Info("auditor stopped gracefully")
}

func (fs *AgentFS) Log(record DecisionRecord) {
	// Убеждаемся, что таймстемп всегда проставлен
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	// Атомарно проверяем, не закрыт ли канал
	if atomic.LoadInt32(&fs.isClosed) == 1 {
		fs.logger.Warn("decision record dropped: auditor is stopping", zap.String("id", record.ID))
		return
	}

	// используем стратегию Load Shedding (сброс нагрузки)
	select {
	case fs.ch <- record:
	default:
		// Если канал переполнен (Backpressure), пишем в стандартный логгер
		// Чтобы не терять данные в критических ситуациях
		fs.logger.Error("audit_buffer_overflow",
			zap.String("agent_id", record.AgentID),
			zap.String("trace_id", record.TraceID),
			zap.String("action", string(record.Action)),
		)
	}
}

func (fs *AgentFS) worker() {
	defer fs.wg.Done()

	batch := make([]DecisionRecord, 0, 100)
	ticker := time.NewTicker(fs.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Используем Background, так как основной контекст может быть уже закрыт
			if err := fs.repo.WriteBatch(context.Background(), batch); err != nil {
				fs.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case record, ok := <-fs.ch:
			if !ok {
				// КАНАЛ ЗАКРЫТ fs.ch в методе Stop() — это самодостаточный сигнал для завершения.
				// Он гарантирует, что воркер:
				//		Сначала вычитает всё, что осталось в очереди.
				//		Только потом получит ok == false.
				//		Вызовет финальный flush() и выйдет.
				flush() // Финальный сброс
				fs.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, record)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
