// identity.go — локальная идентичность пользователя по claims JWT.
// IdentityCache — LRU-кэш с TTL поверх hashicorp/golang-lru/v2/expirable.
// Ключ — claim sub; значение — учётная запись и исследователь.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/rbac"
	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
)

// Prometheus-метрики кэша идентичностей.
var (
	identityCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dw_identity_cache_hits_total",
		Help: "Общее количество попаданий в кэш идентичностей.",
	})
	identityCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dw_identity_cache_misses_total",
		Help: "Общее количество промахов кэша идентичностей.",
	})
)

// Identity — локальные данные аутентифицированного пользователя.
type Identity struct {
	// User — учётная запись
	User *model.User
	// Researcher — исследователь учётной записи (nil, если нет)
	Researcher *model.Researcher
}

// Viewer строит субъект фильтрации видимости.
// idpRole — роль из групп IdP текущего токена.
func (i *Identity) Viewer(idpRole string) *rbac.Viewer {
	v := &rbac.Viewer{
		UserID:      i.User.ID,
		IsSuperuser: rbac.EffectiveSuperuser(i.User.IsSuperuser, idpRole),
		GroupIDs:    i.User.GroupIDs,
	}
	if i.Researcher != nil {
		v.Role = i.Researcher.Role
		v.DeniedBlockIDs = i.Researcher.DeniedBlockIDs
	} else {
		v.NoResearcher = true
	}
	return v
}

// IdentityCache — LRU-кэш идентичностей с автоматическим TTL.
// Методы безопасны для nil-получателя (кэш отключён).
type IdentityCache struct {
	cache *expirable.LRU[string, *Identity]
}

// NewIdentityCache создаёт кэш с указанным максимальным размером и TTL.
func NewIdentityCache(maxSize int, ttl time.Duration) *IdentityCache {
	return &IdentityCache{cache: expirable.NewLRU[string, *Identity](maxSize, nil, ttl)}
}

// Get возвращает идентичность по subject и обновляет метрики hit/miss.
func (c *IdentityCache) Get(subject string) (*Identity, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.cache.Get(subject)
	if ok {
		identityCacheHitsTotal.Inc()
		return val, true
	}
	identityCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись.
func (c *IdentityCache) Set(subject string, id *Identity) {
	if c == nil {
		return
	}
	c.cache.Add(subject, id)
}

// Purge очищает кэш. Вызывается после изменения учётных записей,
// групп и исследователей.
func (c *IdentityCache) Purge() {
	if c == nil {
		return
	}
	c.cache.Purge()
}

// Len возвращает количество записей.
func (c *IdentityCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// TokenIdentity — данные субъекта из JWT, нужные для поиска учётной записи.
type TokenIdentity struct {
	Subject   string
	Username  string
	Email     string
	FirstName string
	LastName  string
	// IdpRole — роль из групп IdP (rbac.RoleAdmin или rbac.RoleReader)
	IdpRole string
}

// IdentityService — разрешение субъекта JWT в локальную учётную запись.
type IdentityService struct {
	repos  *repository.Repositories
	cache  *IdentityCache
	logger *slog.Logger
}

// NewIdentityService создаёт сервис идентичностей.
func NewIdentityService(repos *repository.Repositories, cache *IdentityCache, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		repos:  repos,
		cache:  cache,
		logger: logger.With(slog.String("component", "identity_service")),
	}
}

// Resolve находит учётную запись субъекта.
// Порядок: кэш → auth_subject → username (с привязкой subject).
// Администратор IdP без учётной записи получает её автоматически;
// остальным нужна учётная запись, созданная администратором.
// Неактивная учётная запись даёт ErrForbidden.
func (s *IdentityService) Resolve(ctx context.Context, tok TokenIdentity) (*Identity, error) {
	if tok.Subject == "" {
		return nil, fmt.Errorf("%w: пустой subject", ErrForbidden)
	}
	if id, ok := s.cache.Get(tok.Subject); ok {
		return id, nil
	}

	user, err := s.findUser(ctx, tok)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: учётная запись %s отключена", ErrForbidden, user.Username)
	}

	id := &Identity{User: user}
	res, err := s.repos.Researchers.GetByUserID(ctx, user.ID)
	switch {
	case err == nil:
		id.Researcher = res
	case !errors.Is(err, repository.ErrNotFound):
		return nil, mapRepoError(err, "получение исследователя")
	}

	s.cache.Set(tok.Subject, id)
	return id, nil
}

func (s *IdentityService) findUser(ctx context.Context, tok TokenIdentity) (*model.User, error) {
	user, err := s.repos.Users.GetBySubject(ctx, tok.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, mapRepoError(err, "поиск учётной записи")
	}

	username := strings.TrimSpace(tok.Username)
	if username != "" {
		user, err = s.repos.Users.GetByUsername(ctx, username)
		switch {
		case err == nil:
			if user.AuthSubject != nil && *user.AuthSubject != tok.Subject {
				return nil, fmt.Errorf("%w: учётная запись %s связана с другим субъектом", ErrForbidden, username)
			}
			if err := s.repos.Users.BindSubject(ctx, user.ID, tok.Subject); err != nil {
				return nil, mapRepoError(err, "привязка субъекта")
			}
			subject := tok.Subject
			user.AuthSubject = &subject
			s.logger.Info("Учётная запись связана с субъектом IdP",
				slog.String("user_id", user.ID),
				slog.String("username", username),
			)
			return user, nil
		case !errors.Is(err, repository.ErrNotFound):
			return nil, mapRepoError(err, "поиск учётной записи")
		}
	}

	if tok.IdpRole != rbac.RoleAdmin {
		return nil, fmt.Errorf("%w: учётная запись не зарегистрирована", ErrForbidden)
	}
	return s.provisionAdmin(ctx, tok)
}

// provisionAdmin создаёт учётную запись администратора IdP при первом входе.
// Локальный флаг суперпользователя не ставится: права дают группы IdP.
func (s *IdentityService) provisionAdmin(ctx context.Context, tok TokenIdentity) (*model.User, error) {
	username := strings.TrimSpace(tok.Username)
	if username == "" {
		username = tok.Subject
	}
	subject := tok.Subject
	user := &model.User{
		ID:          uuid.New().String(),
		Username:    username,
		AuthSubject: &subject,
		FirstName:   tok.FirstName,
		LastName:    tok.LastName,
		Email:       tok.Email,
		IsActive:    true,
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "создание учётной записи администратора")
	}
	s.logger.Info("Учётная запись администратора IdP создана",
		slog.String("user_id", user.ID),
		slog.String("username", username),
	)
	return user, nil
}
