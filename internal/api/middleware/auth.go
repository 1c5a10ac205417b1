// auth.go — JWT middleware аутентификации и авторизации каталога.
// Проверяет подпись токена через JWKS провайдера идентификации,
// маппит группы IdP в роль и находит локальную учётную запись субъекта.
// В контекст запроса помещаются claims, идентичность и субъект видимости.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/noeliagrande/dwarfs4mosaic/internal/api/errors"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/rbac"
	"github.com/noeliagrande/dwarfs4mosaic/internal/service"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — извлечённые claims и локальная идентичность.
	ContextKeyClaims contextKey = "jwt_claims"
)

// AuthClaims — claims токена и разрешённая по ним локальная идентичность.
type AuthClaims struct {
	// Subject — sub из JWT
	Subject string
	// PreferredUsername — preferred_username из JWT
	PreferredUsername string
	// Email — email из JWT
	Email string
	// Groups — группы IdP
	Groups []string
	// IdpRole — роль из групп IdP (admin или reader)
	IdpRole string
	// Identity — локальная учётная запись и исследователь
	Identity *service.Identity
	// Viewer — субъект фильтрации видимости блоков и целей
	Viewer *rbac.Viewer
}

// IsSuperuser сообщает, что субъект — суперпользователь
// (локальный флаг или группа администраторов IdP).
func (c *AuthClaims) IsSuperuser() bool {
	return c.Viewer != nil && c.Viewer.IsSuperuser
}

// IdentityResolver — поиск локальной учётной записи по данным токена.
// Реализуется service.IdentityService.
type IdentityResolver interface {
	Resolve(ctx context.Context, tok service.TokenIdentity) (*service.Identity, error)
}

// idpClaims — raw claims JWT провайдера идентификации.
type idpClaims struct {
	jwt.RegisteredClaims
	// PreferredUsername — имя пользователя
	PreferredUsername string `json:"preferred_username"`
	// Email — электронная почта
	Email string `json:"email"`
	// GivenName — имя
	GivenName string `json:"given_name"`
	// FamilyName — фамилия
	FamilyName string `json:"family_name"`
	// Groups — группы пользователя
	Groups []string `json:"groups,omitempty"`
}

// JWTAuth — middleware для JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks        keyfunc.Keyfunc
	logger      *slog.Logger
	resolver    IdentityResolver
	adminGroups []string
	issuer      string
	jwtLeeway   time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS провайдера идентификации.
// jwksURL — URL JWKS endpoint.
// caCertPath — опциональный путь к CA-сертификату для TLS.
// issuer — ожидаемый issuer JWT (пусто — не проверяется).
// resolver — поиск локальной учётной записи.
// adminGroups — группы IdP, дающие права суперпользователя.
// jwksClientTimeout — таймаут HTTP-клиента JWKS (DW_JWKS_CLIENT_TIMEOUT).
// jwksRefreshInterval — интервал обновления ключей (DW_JWKS_REFRESH_INTERVAL).
// jwtLeeway — допустимое отклонение времени при проверке JWT (DW_JWT_LEEWAY).
func NewJWTAuth(
	jwksURL string,
	caCertPath string,
	issuer string,
	resolver IdentityResolver,
	adminGroups []string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	httpClient := &http.Client{Timeout: jwksClientTimeout}
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, jwksClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq — стартуем даже если IdP ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	auth := NewJWTAuthWithKeyfunc(k, issuer, resolver, adminGroups, logger)
	auth.jwtLeeway = jwtLeeway
	return auth, nil
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("в файле нет PEM-сертификатов")
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    caCertPool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки JWKS из памяти.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	resolver IdentityResolver,
	adminGroups []string,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		jwks:        kf,
		logger:      logger.With(slog.String("component", "jwt_auth")),
		resolver:    resolver,
		adminGroups: adminGroups,
		issuer:      issuer,
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token, валидирует подпись (RS256), находит локальную
// учётную запись и помещает AuthClaims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, msg := bearerToken(r)
			if msg != "" {
				apierrors.Unauthorized(w, msg)
				return
			}

			rawClaims := &idpClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}
			if !token.Valid {
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			claims := j.buildAuthClaims(rawClaims)
			identity, err := j.resolver.Resolve(r.Context(), j.tokenIdentity(rawClaims, claims.IdpRole))
			if err != nil {
				if errors.Is(err, service.ErrForbidden) {
					j.logger.Info("Доступ отклонён",
						slog.String("subject", subject),
						slog.String("error", err.Error()),
					)
					apierrors.Forbidden(w, "Учётная запись не зарегистрирована или отключена")
					return
				}
				j.logger.Error("Ошибка поиска учётной записи",
					slog.String("subject", subject),
					slog.String("error", err.Error()),
				)
				apierrors.InternalError(w, "Ошибка поиска учётной записи")
				return
			}
			claims.Identity = identity
			claims.Viewer = identity.Viewer(claims.IdpRole)

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization.
// Непустое сообщение — причина отказа.
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "Отсутствует заголовок Authorization"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "Неверный формат Authorization: ожидается Bearer <token>"
	}
	if parts[1] == "" {
		return "", "Пустой Bearer token"
	}
	return parts[1], ""
}

// buildAuthClaims формирует AuthClaims из raw claims.
// Группы Keycloak с полным путём (/dwarfs-admins) сравниваются без ведущего слеша.
func (j *JWTAuth) buildAuthClaims(raw *idpClaims) *AuthClaims {
	groups := make([]string, 0, len(raw.Groups))
	for _, g := range raw.Groups {
		if g = strings.TrimPrefix(g, "/"); g != "" {
			groups = append(groups, g)
		}
	}
	return &AuthClaims{
		Subject:           raw.Subject,
		PreferredUsername: raw.PreferredUsername,
		Email:             raw.Email,
		Groups:            groups,
		IdpRole:           rbac.MapGroupsToRole(groups, j.adminGroups),
	}
}

func (j *JWTAuth) tokenIdentity(raw *idpClaims, idpRole string) service.TokenIdentity {
	return service.TokenIdentity{
		Subject:   raw.Subject,
		Username:  raw.PreferredUsername,
		Email:     raw.Email,
		FirstName: raw.GivenName,
		LastName:  raw.FamilyName,
		IdpRole:   idpRole,
	}
}

// --- RBAC middleware helpers ---

// RequireSuperuser возвращает middleware, пропускающий только суперпользователей.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireSuperuser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
				return
			}
			if !claims.IsSuperuser() {
				apierrors.Forbidden(w, "Недостаточно прав: требуется суперпользователь")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// WithClaims возвращает контекст с claims. Используется в тестах обработчиков.
func WithClaims(ctx context.Context, claims *AuthClaims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// ViewerFromContext возвращает субъект видимости запроса.
// Без claims возвращается пустой viewer, которому не видно ничего ограниченного.
func ViewerFromContext(ctx context.Context) *rbac.Viewer {
	claims := ClaimsFromContext(ctx)
	if claims == nil || claims.Viewer == nil {
		return &rbac.Viewer{}
	}
	return claims.Viewer
}

// --- ReadinessChecker для IdP ---

// JWKSReadinessChecker — проверка доступности IdP через JWKS endpoint.
type JWKSReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewJWKSReadinessChecker создаёт checker доступности IdP.
func NewJWKSReadinessChecker(jwksURL, caCertPath string, timeout time.Duration) (*JWKSReadinessChecker, error) {
	client := &http.Client{Timeout: timeout}
	if caCertPath != "" {
		var err error
		client, err = httpClientWithCA(caCertPath, timeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA для readiness checker: %w", err)
		}
	}

	return &JWKSReadinessChecker{
		jwksURL: jwksURL,
		client:  client,
	}, nil
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint.
func (k *JWKSReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return statusFail, fmt.Sprintf("JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("JWKS вернул статус %d", resp.StatusCode)
	}

	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("JWKS: невалидный JSON: %v", err)
	}
	if len(jwksResp.Keys) == 0 {
		return "degraded", "JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}
