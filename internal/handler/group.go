package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rosevale/habitloop/internal/auth"
	"github.com/rosevale/habitloop/internal/billing"
	"github.com/rosevale/habitloop/internal/email"
	"github.com/rosevale/habitloop/internal/store"
	"github.com/rosevale/habitloop/internal/websocket"
)

type GroupHandler struct {
	groups   *store.GroupStore
	users    *store.UserStore
	invites  *store.InviteStore
	sessions *store.SessionStore
	subs     *store.SubscriptionStore
	mailer   *email.Client
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewGroupHandler(
	gs *store.GroupStore,
	us *store.UserStore,
	is *store.InviteStore,
	ss *store.SessionStore,
	subs *store.SubscriptionStore,
	mailer *email.Client,
	hub *websocket.Hub,
	logger *slog.Logger,
) *GroupHandler {
	return &GroupHandler{
		groups:   gs,
		users:    us,
		invites:  is,
		sessions: ss,
		subs:     subs,
		mailer:   mailer,
		hub:      hub,
		logger:   logger,
	}
}

// List returns every group the caller belongs to.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	groups, err := h.groups.ListGroupsForUser(ac.UserID)
	if err != nil {
		h.logger.Error("list groups", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	group, err := h.groups.Create(req.Name, false)
	if err != nil {
		h.logger.Error("create group", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if _, err := h.groups.AddMember(group.ID, ac.UserID, "admin"); err != nil {
		h.logger.Error("add group admin", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// Update renames the active group. Admin only.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	group, err := h.groups.Update(ac.GroupID, req.Name)
	if err != nil {
		h.logger.Error("update group", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	h.hub.Broadcast(ac.GroupID, websocket.NewMessage("group", "updated", group.ID, nil))
	writeJSON(w, http.StatusOK, group)
}

type memberResponse struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	members, err := h.groups.ListMembers(ac.GroupID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp := memberResponse{UserID: m.UserID, Role: m.Role}
		if u, err := h.users.GetByID(m.UserID); err == nil && u != nil {
			resp.Email = u.Email
			resp.Name = u.Name
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// RemoveMember drops a member from the active group. Admins can remove
// anyone else; members can only remove themselves.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	userID, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if userID != ac.UserID && ac.Role != "admin" {
		writeError(w, http.StatusForbidden, "admin role required")
		return
	}
	if userID == ac.UserID && ac.Role == "admin" {
		writeError(w, http.StatusBadRequest, "admins must transfer the group before leaving")
		return
	}

	if err := h.groups.RemoveMember(ac.GroupID, userID); err != nil {
		h.logger.Error("remove member", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.hub.Broadcast(ac.GroupID, websocket.NewMessage("member", "deleted", userID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Invite emails a join link for the active group. Admin only, subject
// to the plan's member limit.
func (h *GroupHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	plan, err := h.subs.PlanForUser(ac.UserID)
	if err != nil {
		h.logger.Error("plan lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	count, err := h.groups.CountMembers(ac.GroupID)
	if err != nil {
		h.logger.Error("count members", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if count >= billing.LimitsFor(plan).MaxGroupMembers {
		writeError(w, http.StatusForbidden, "member limit reached for your plan")
		return
	}

	invite, err := h.invites.Create(ac.GroupID, req.Email, ac.UserID)
	if err != nil {
		h.logger.Error("create invite", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if h.mailer.Configured() {
		group, _ := h.groups.GetByID(ac.GroupID)
		inviter, _ := h.users.GetByID(ac.UserID)
		groupName, inviterName := "your group", ""
		if group != nil {
			groupName = group.Name
		}
		if inviter != nil {
			inviterName = inviter.Name
		}
		if err := h.mailer.SendInvite(req.Email, invite.Token, groupName, inviterName); err != nil {
			h.logger.Error("send invite email", "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, invite)
}

// AcceptInvite joins the caller to the invited group and switches the
// session to it. The invite must be addressed to the caller's email.
func (h *GroupHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	invite, err := h.invites.GetByToken(req.Token)
	if err != nil {
		h.logger.Error("get invite", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if invite == nil || invite.AcceptedAt != nil || time.Now().After(invite.ExpiresAt) {
		writeError(w, http.StatusNotFound, "invite not found or expired")
		return
	}

	user, err := h.users.GetByID(ac.UserID)
	if err != nil || user == nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !strings.EqualFold(user.Email, invite.Email) {
		writeError(w, http.StatusForbidden, "invite is addressed to a different email")
		return
	}

	if existing, err := h.groups.GetMember(invite.GroupID, ac.UserID); err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	} else if existing == nil {
		if _, err := h.groups.AddMember(invite.GroupID, ac.UserID, "member"); err != nil {
			h.logger.Error("add member", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	if err := h.invites.MarkAccepted(invite.ID); err != nil {
		h.logger.Error("mark invite accepted", "error", err)
	}
	if err := h.sessions.SwitchGroup(ac.SessionID, invite.GroupID); err != nil {
		h.logger.Error("switch group", "error", err)
	}

	h.hub.Broadcast(invite.GroupID, websocket.NewMessage("member", "created", ac.UserID, nil))
	writeJSON(w, http.StatusOK, map[string]any{"group_id": invite.GroupID})
}

// Switch points the caller's session at another group they belong to.
func (h *GroupHandler) Switch(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	groupID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return
	}

	member, err := h.groups.GetMember(groupID, ac.UserID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if member == nil {
		writeError(w, http.StatusForbidden, "not a member of that group")
		return
	}

	if err := h.sessions.SwitchGroup(ac.SessionID, groupID); err != nil {
		h.logger.Error("switch group", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group_id": groupID})
}
