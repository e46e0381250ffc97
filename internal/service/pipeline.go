// pipeline.go — конвейер обработки одного CDC-сообщения:
// decode → filter → map → validate → dispatch.
//
// Исход обработки:
//   - Applied — изменение применено к Keycloak;
//   - Skipped — сообщение пропущено (нерелевантно или терминально
//     некорректно: битый JSON, нет userId, неизвестная операция) —
//     повторная доставка бессмысленна;
//   - Failed — ошибка на стороне Keycloak или сети — решение о судьбе
//     сообщения (drop или requeue) принимает транспорт по настроенной
//     политике.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/verifix/usersync/internal/cdc"
)

// Outcome — исход обработки сообщения.
type Outcome int

const (
	// OutcomeApplied — изменение применено к Keycloak.
	OutcomeApplied Outcome = iota
	// OutcomeSkipped — сообщение пропущено, redelivery не нужен.
	OutcomeSkipped
	// OutcomeFailed — ошибка identity provider'а, применима политика отказа.
	OutcomeFailed
)

// String возвращает имя исхода для логов и метрик.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pipeline — конвейер обработки CDC-сообщений.
type Pipeline struct {
	filter  *cdc.Filter
	syncSvc *UserSyncService
	logger  *slog.Logger
}

// NewPipeline создаёт конвейер обработки.
func NewPipeline(filter *cdc.Filter, syncSvc *UserSyncService, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		filter:  filter,
		syncSvc: syncSvc,
		logger:  logger.With(slog.String("component", "pipeline")),
	}
}

// Process обрабатывает сырое тело одного CDC-сообщения.
// Никакая ошибка не пересекает границу вызова: все они превращаются
// в Skipped или Failed с логированием проблемного сообщения.
func (p *Pipeline) Process(ctx context.Context, raw []byte) Outcome {
	start := time.Now()
	outcome := p.process(ctx, raw)

	processingDuration.Observe(time.Since(start).Seconds())
	messagesTotal.WithLabelValues(outcome.String()).Inc()

	return outcome
}

func (p *Pipeline) process(ctx context.Context, raw []byte) Outcome {
	// 1. Decode
	event, err := cdc.Decode(raw)
	if err != nil {
		switch {
		case errors.Is(err, cdc.ErrEmptyMessage):
			p.logger.Warn("Получено сообщение с пустым телом, пропускаем")
		case errors.Is(err, cdc.ErrNoPayload):
			p.logger.Warn("Получено сообщение без payload, пропускаем")
		default:
			p.logger.Error("Ошибка разбора CDC-сообщения",
				slog.String("error", err.Error()),
			)
			p.logProblematicMessage(raw)
		}
		return OutcomeSkipped
	}

	// 2. Filter: пропускаем события без изменений в отслеживаемых колонках
	if !p.filter.HasRelevantChanges(event.Before, event.After) {
		p.logger.Info("Сообщение пропущено: нет изменений в отслеживаемых колонках",
			slog.String("user_id", event.UserIDHint()),
		)
		return OutcomeSkipped
	}

	// 3. Map
	userData, err := cdc.MapToUserData(event)
	if err != nil {
		p.logger.Error("Ошибка извлечения данных пользователя",
			slog.String("error", err.Error()),
		)
		p.logProblematicMessage(raw)
		return OutcomeSkipped
	}

	// 4. Validate: userId обязателен — это ключ корреляции
	if userData.UserID == nil {
		p.logger.Error(ErrMissingUserID.Error(),
			slog.String("login", userData.LoginValue()),
		)
		p.logProblematicMessage(raw)
		return OutcomeSkipped
	}

	// 5. Операция: неизвестный код отклоняется до обращения к Keycloak
	operation, err := cdc.ParseOperation(event.OpCode)
	if err != nil {
		p.logger.Warn("Неизвестный код операции",
			slog.String("op", event.OpCode),
			slog.Int64("user_id", *userData.UserID),
			slog.String("login", userData.LoginValue()),
		)
		p.logProblematicMessage(raw)
		return OutcomeSkipped
	}

	p.logger.Info("Обработка операции",
		slog.String("operation", operation.String()),
		slog.Int64("user_id", *userData.UserID),
		slog.String("login", userData.LoginValue()),
	)

	// 6. Dispatch: снапшот (read) обрабатывается как create/update —
	// идемпотентный upsert делает replay снапшота безопасным
	switch operation {
	case cdc.OpRead, cdc.OpCreate, cdc.OpUpdate:
		err = p.syncSvc.HandleUserSave(ctx, userData)
	case cdc.OpDelete:
		err = p.syncSvc.HandleUserDelete(ctx, userData)
	}

	if err != nil {
		p.logger.Error("Ошибка синхронизации с Keycloak",
			slog.String("operation", operation.String()),
			slog.Int64("user_id", *userData.UserID),
			slog.String("error", err.Error()),
		)
		p.logProblematicMessage(raw)
		return OutcomeFailed
	}

	p.logger.Info("Операция обработана",
		slog.String("operation", operation.String()),
		slog.Int64("user_id", *userData.UserID),
		slog.String("login", userData.LoginValue()),
	)
	return OutcomeApplied
}

// logProblematicMessage логирует сырое тело сообщения, вызвавшего проблему.
func (p *Pipeline) logProblematicMessage(raw []byte) {
	p.logger.Error("Проблемное сообщение", slog.String("body", string(raw)))
}
