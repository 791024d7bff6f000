package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dkettner/mongoweb/db"
	"github.com/dkettner/mongoweb/internal/uuid"
	"github.com/dkettner/mongoweb/otp"
)

// connectRedirectTarget is where logout sends the browser.
const connectRedirectTarget = "/Connect"

// CreateOTP handles POST /auth/otp. It validates the submitted
// credentials by opening a real database connection, escrows them
// behind a fresh pad and returns the session id and token the client
// must hold as cookies. Credential, origin and connectivity failures
// are all answered with an identical empty response so the endpoint
// leaks nothing about which check failed.
func (a *API) CreateOTP(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if blocked, retryAfter := a.limiter.check(ip); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "ip rate limited",
			slog.String("client_ip", ip))
		writeRateLimited(w, retryAfter)
		return
	}

	req, ok := decodeJSON[ConnectRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}

	creds := db.NewCredentials(req.Username, req.Password)
	client, err := a.connector.Connect(r.Context(), creds, ip)
	if err != nil {
		a.limiter.recordFailure(ip)
		a.audit.logFailure(AuditLoginFailure, r, "connection refused",
			slog.String("username", req.Username),
			slog.String("client_ip", ip))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	// The connection served only to validate the credentials; the gate
	// opens a fresh one per request.
	a.connector.Disconnect(r.Context(), client)

	inputData := otp.InputData(req.Username, req.Password)
	pad, err := otp.NewPad(inputData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate session pad")
		return
	}
	token, err := otp.Encrypt(inputData, pad)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to initialize session")
		return
	}

	id := uuid.New()
	now := time.Now()
	a.sessions.Put(id, SessionRecord{
		SessionID:    id,
		Created:      now,
		ExpiresAt:    now.Add(time.Duration(a.cfg.DeleteOtpInDays) * 24 * time.Hour),
		Pad:          pad,
		LastAccess:   now,
		LastOriginIP: ip,
		Username:     req.Username,
	})

	a.limiter.recordSuccess(ip)
	a.audit.logEvent(AuditLoginSuccess, r, id,
		slog.String("username", req.Username),
		slog.String("client_ip", ip))
	writeJSON(w, http.StatusOK, AuthResponse{UUID: id, Token: token})
}

// Logout handles GET /auth/logout. It deletes the session record and
// its per-session storage, expires both cookies and redirects. Logging
// out an unknown or already-deleted session behaves identically.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	id := cookieValue(r, sessionCookieName)
	if id != "" && uuid.Valid(id) {
		a.sessions.Delete(id)
		if err := a.storage.Remove(id); err != nil {
			a.audit.logger.Warn("user storage cleanup failed",
				slog.String("session_id", id), slog.String("error", err.Error()))
		}
		a.audit.logEvent(AuditLogout, r, id)
	}
	clearSessionCookies(w)
	http.Redirect(w, r, connectRedirectTarget, http.StatusFound)
}
