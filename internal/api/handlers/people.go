// people.go — обработчики учётных записей, исследователей и групп:
// /api/v1/me, /api/v1/users, /api/v1/researchers, /api/v1/groups.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/noeliagrande/dwarfs4mosaic/internal/api/errors"
	"github.com/noeliagrande/dwarfs4mosaic/internal/api/middleware"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/service"
)

// --- DTO ---

type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	IsSuperuser bool      `json:"is_superuser"`
	IsActive    bool      `json:"is_active"`
	Linked      bool      `json:"linked"`
	GroupIDs    []string  `json:"group_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func mapUser(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Email:       u.Email,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
		Linked:      u.AuthSubject != nil,
		GroupIDs:    orEmpty(u.GroupIDs),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type researcherResponse struct {
	ID             string    `json:"id"`
	UserID         *string   `json:"user_id"`
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	Institution    string    `json:"institution"`
	IsPhD          bool      `json:"is_phd"`
	Comments       string    `json:"comments"`
	DeniedBlockIDs []string  `json:"denied_block_ids"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func mapResearcher(r *model.Researcher) researcherResponse {
	return researcherResponse{
		ID:             r.ID,
		UserID:         r.UserID,
		Name:           r.Name,
		DisplayName:    r.DisplayName(),
		Email:          r.Email,
		Role:           r.Role,
		Institution:    r.Institution,
		IsPhD:          r.IsPhD,
		Comments:       r.Comments,
		DeniedBlockIDs: orEmpty(r.DeniedBlockIDs),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type groupResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func mapGroup(g *model.Group) groupResponse {
	return groupResponse{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt}
}

type userRequest struct {
	Username    string   `json:"username"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	IsSuperuser bool     `json:"is_superuser"`
	IsActive    *bool    `json:"is_active"`
	GroupIDs    []string `json:"group_ids"`
}

// input переводит запрос в UserInput. is_active по умолчанию true.
func (req userRequest) input() service.UserInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return service.UserInput{
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		IsSuperuser: req.IsSuperuser,
		IsActive:    active,
		GroupIDs:    req.GroupIDs,
	}
}

type researcherRequest struct {
	Role           string   `json:"role"`
	Institution    string   `json:"institution"`
	IsPhD          bool     `json:"is_phd"`
	Comments       string   `json:"comments"`
	DeniedBlockIDs []string `json:"denied_block_ids"`
}

func (req researcherRequest) input() service.ResearcherInput {
	return service.ResearcherInput{
		Role:           req.Role,
		Institution:    req.Institution,
		IsPhD:          req.IsPhD,
		Comments:       req.Comments,
		DeniedBlockIDs: req.DeniedBlockIDs,
	}
}

type registrationRequest struct {
	User       userRequest       `json:"user"`
	Researcher researcherRequest `json:"researcher"`
}

type registrationResponse struct {
	User       userResponse       `json:"user"`
	Researcher researcherResponse `json:"researcher"`
}

type fieldsResponse struct {
	Fields []string `json:"fields"`
}

// --- /me ---

type meResponse struct {
	User        userResponse        `json:"user"`
	Researcher  *researcherResponse `json:"researcher"`
	IsSuperuser bool                `json:"is_superuser"`
	IdpRole     string              `json:"idp_role"`
	IdpGroups   []string            `json:"idp_groups"`
}

// GetMe — GET /api/v1/me.
// Возвращает учётную запись, исследователя и признак суперпользователя.
func (h *APIHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil || claims.Identity == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
		return
	}
	resp := meResponse{
		User:        mapUser(claims.Identity.User),
		IsSuperuser: claims.IsSuperuser(),
		IdpRole:     claims.IdpRole,
		IdpGroups:   orEmpty(claims.Groups),
	}
	if claims.Identity.Researcher != nil {
		res := mapResearcher(claims.Identity.Researcher)
		resp.Researcher = &res
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- /users ---

// ListUsers — GET /api/v1/users.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.Users.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения учётных записей")
		return
	}
	writeJSON(w, http.StatusOK, newList(users, mapUser))
}

// CreateUser — POST /api/v1/users.
// Создаёт учётную запись вместе с исследователем одной транзакцией.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reg, err := h.svc.Researchers.Register(r.Context(), req.User.input(), req.Researcher.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка регистрации исследователя")
		return
	}
	writeJSON(w, http.StatusCreated, registrationResponse{
		User:       mapUser(reg.User),
		Researcher: mapResearcher(reg.Researcher),
	})
}

// GetUser — GET /api/v1/users/{id}.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Users.Get(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения учётной записи")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(u))
}

// UpdateUser — PUT /api/v1/users/{id}.
// Имя и email исследователя обновляются в той же транзакции.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.svc.Users.Update(r.Context(), idParam(r), req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления учётной записи")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(u))
}

// DeleteUser — DELETE /api/v1/users/{id}.
// Суперпользователя удалить нельзя; исследователь остаётся без учётной записи.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Users.Delete(r.Context(), idParam(r)); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления учётной записи")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- /researchers ---

// ListResearchers — GET /api/v1/researchers.
func (h *APIHandler) ListResearchers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Researchers.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения исследователей")
		return
	}
	writeJSON(w, http.StatusOK, newList(list, mapResearcher))
}

// GetResearcher — GET /api/v1/researchers/{id}.
func (h *APIHandler) GetResearcher(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Researchers.Get(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения исследователя")
		return
	}
	writeJSON(w, http.StatusOK, mapResearcher(res))
}

// ResearcherEditableFields — GET /api/v1/researchers/{id}/editable-fields
// и GET /api/v1/researchers/editable-fields (создание).
func (h *APIHandler) ResearcherEditableFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.svc.Researchers.EditableFields(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения редактируемых полей")
		return
	}
	writeJSON(w, http.StatusOK, fieldsResponse{Fields: orEmpty(fields)})
}

// UpdateResearcher — PUT /api/v1/researchers/{id}.
// Исследователь без учётной записи не редактируется.
func (h *APIHandler) UpdateResearcher(w http.ResponseWriter, r *http.Request) {
	var req researcherRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Researchers.Update(r.Context(), idParam(r), req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления исследователя")
		return
	}
	writeJSON(w, http.StatusOK, mapResearcher(res))
}

// DeleteResearcher — DELETE /api/v1/researchers/{id}.
func (h *APIHandler) DeleteResearcher(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Researchers.Delete(r.Context(), idParam(r)); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления исследователя")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- /groups ---

type groupRequest struct {
	Name string `json:"name"`
}

type groupBlocksRequest struct {
	BlockIDs []string `json:"block_ids"`
}

type groupBlocksResponse struct {
	BlockIDs []string `json:"block_ids"`
}

// ListGroups — GET /api/v1/groups. Служебная группа admin не показывается.
func (h *APIHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Groups.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения групп")
		return
	}
	writeJSON(w, http.StatusOK, newList(groups, mapGroup))
}

// CreateGroup — POST /api/v1/groups.
func (h *APIHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.svc.Groups.Create(r.Context(), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания группы")
		return
	}
	writeJSON(w, http.StatusCreated, mapGroup(g))
}

// GetGroup — GET /api/v1/groups/{id}.
func (h *APIHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Groups.Get(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения группы")
		return
	}
	writeJSON(w, http.StatusOK, mapGroup(g))
}

// RenameGroup — PUT /api/v1/groups/{id}.
func (h *APIHandler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.svc.Groups.Rename(r.Context(), idParam(r), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка переименования группы")
		return
	}
	writeJSON(w, http.StatusOK, mapGroup(g))
}

// DeleteGroup — DELETE /api/v1/groups/{id}.
func (h *APIHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Groups.Delete(r.Context(), idParam(r)); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления группы")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListGroupMembers — GET /api/v1/groups/{id}/members.
func (h *APIHandler) ListGroupMembers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.Groups.Members(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения участников группы")
		return
	}
	writeJSON(w, http.StatusOK, newList(users, mapUser))
}

// AddGroupMember — PUT /api/v1/groups/{id}/members/{userID}.
func (h *APIHandler) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Groups.AddMember(r.Context(), idParam(r), chi.URLParam(r, "userID")); err != nil {
		h.writeServiceError(w, r, err, "Ошибка добавления участника группы")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveGroupMember — DELETE /api/v1/groups/{id}/members/{userID}.
func (h *APIHandler) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Groups.RemoveMember(r.Context(), idParam(r), chi.URLParam(r, "userID")); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления участника группы")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGroupBlocks — GET /api/v1/groups/{id}/blocks.
func (h *APIHandler) GetGroupBlocks(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.Groups.Blocks(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения блоков группы")
		return
	}
	writeJSON(w, http.StatusOK, groupBlocksResponse{BlockIDs: orEmpty(ids)})
}

// SetGroupBlocks — PUT /api/v1/groups/{id}/blocks.
// Заменяет набор блоков, доступных группе.
func (h *APIHandler) SetGroupBlocks(w http.ResponseWriter, r *http.Request) {
	var req groupBlocksRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ids, err := h.svc.Groups.SetBlocks(r.Context(), idParam(r), req.BlockIDs)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка изменения блоков группы")
		return
	}
	writeJSON(w, http.StatusOK, groupBlocksResponse{BlockIDs: orEmpty(ids)})
}
