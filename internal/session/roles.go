package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/sl"
	"github.com/magabrotheeeer/auto-trigger/internal/metrics"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// DefaultRoleTimeout — время, после которого проверка роли считается неуспешной.
const DefaultRoleTimeout = 5 * time.Second

// RoleLookup читает роли пользователя из user_roles.
type RoleLookup interface {
	UserRoles(ctx context.Context, userID string) ([]string, error)
}

// RoleResolver определяет, является ли пользователь администратором.
type RoleResolver struct {
	lookup  RoleLookup
	timeout time.Duration
	log     *slog.Logger
}

// NewRoleResolver создает RoleResolver. Неположительный timeout заменяется на DefaultRoleTimeout.
func NewRoleResolver(lookup RoleLookup, timeout time.Duration, log *slog.Logger) *RoleResolver {
	if timeout <= 0 {
		timeout = DefaultRoleTimeout
	}
	return &RoleResolver{lookup: lookup, timeout: timeout, log: log}
}

type roleResult struct {
	roles    []string
	err      error
	panicked bool
}

// IsAdmin выполняет один запрос роли наперегонки с таймером. Возвращает true
// только если найдена ровно одна запись со значением admin. Таймаут, ошибка,
// паника запроса, отсутствие или несколько записей дают false.
func (r *RoleResolver) IsAdmin(ctx context.Context, userID string) bool {
	const op = "session.RoleResolver.IsAdmin"
	log := r.log.With(slog.String("op", op), slog.String("user_id", userID))

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// буфер 1: проигравший гонку запрос завершится без блокировки
	done := make(chan roleResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- roleResult{err: fmt.Errorf("panic: %v", p), panicked: true}
			}
		}()
		roles, err := r.lookup.UserRoles(lookupCtx, userID)
		done <- roleResult{roles: roles, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		log.Warn("role lookup timed out", slog.Duration("timeout", r.timeout))
		metrics.RoleResolutions.WithLabelValues(metrics.RoleTimeout).Inc()
		return false
	case res := <-done:
		return r.decide(log, res)
	}
}

func (r *RoleResolver) decide(log *slog.Logger, res roleResult) bool {
	switch {
	case res.panicked:
		log.Error("role lookup panicked", sl.Err(res.err))
		metrics.RoleResolutions.WithLabelValues(metrics.RolePanic).Inc()
		return false
	case res.err != nil:
		log.Error("role lookup failed", sl.Err(res.err))
		metrics.RoleResolutions.WithLabelValues(metrics.RoleError).Inc()
		return false
	case len(res.roles) == 0:
		log.Debug("no role record")
		metrics.RoleResolutions.WithLabelValues(metrics.RoleNotAdmin).Inc()
		return false
	case len(res.roles) > 1:
		log.Warn("multiple role records", slog.Int("count", len(res.roles)))
		metrics.RoleResolutions.WithLabelValues(metrics.RoleAmbiguous).Inc()
		return false
	case res.roles[0] == models.RoleAdmin:
		metrics.RoleResolutions.WithLabelValues(metrics.RoleAdmin).Inc()
		return true
	default:
		metrics.RoleResolutions.WithLabelValues(metrics.RoleNotAdmin).Inc()
		return false
	}
}
