package devserver

import (
	"net/http"

	"github.com/dmitrijs2005/vaultguard/internal/common"
)

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, "ok", nil)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	sid, err := s.svc.signup(r.Context(), in.Username, in.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setCookie(w, common.SessionCookieName, sid, signupSessionTTL)
	s.writeData(w, http.StatusCreated, "created", in)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email        string `json:"email"`
		AuthVerifier string `json:"authVerifier"`
	}
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, pair, err := s.svc.login(r.Context(), in.Email, in.AuthVerifier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setTokenCookies(w, pair)
	s.writeData(w, http.StatusOK, "Login success", user)
}

func (s *Server) handleSetIdentifier(w http.ResponseWriter, r *http.Request) {
	var in identifier
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.setIdentifier(r.Context(), sessionID(r), in); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setCookie(w, common.SessionCookieName, "", 0)
	s.writeData(w, http.StatusOK, "User identifier updated", nil)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.svc.logout(r.Context(), userIDFrom(r.Context()))
	s.clearTokenCookies(w)
	s.writeData(w, http.StatusOK, "Logged out", nil)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(common.RefreshTokenCookieName); err == nil {
		token = c.Value
	}

	pair, err := s.svc.refresh(r.Context(), token)
	if err != nil {
		s.clearTokenCookies(w)
		s.writeError(w, r, err)
		return
	}
	s.setTokenCookies(w, pair)
	s.writeData(w, http.StatusOK, "Token refreshed", nil)
}

func (s *Server) handleReportFailed(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.reportFailed(r.Context(), in.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, "", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.me(userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, "User retrieved successfully", user)
}

// handleIdentifier answers with no data for unknown emails so that the
// response does not reveal whether an account exists beyond that.
func (s *Server) handleIdentifier(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	id := s.svc.identifierFor(in.Email)
	if id == nil {
		s.writeData(w, http.StatusOK, "No identifier", nil)
		return
	}
	s.writeData(w, http.StatusOK, "Identifier fetched successfully", id)
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var out struct {
		State string `json:"state,omitempty"`
	}
	out.State = s.svc.sessionState(sessionID(r))
	s.writeData(w, http.StatusOK, "Session checked", out)
}

func (s *Server) handleOTPStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.otpStatus(sessionID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, "OTP status retrieved successfully", st)
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.resendOTP(r.Context(), sessionID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, "OTP resent successfully", res)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OTPCode string `json:"otpCode"`
	}
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.verifyOTP(r.Context(), sessionID(r), in.OTPCode); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, "OTP verified successfully", nil)
}

func (s *Server) handleListVault(w http.ResponseWriter, r *http.Request) {
	items := s.svc.listVault(userIDFrom(r.Context()))
	if items == nil {
		items = []vaultItem{}
	}
	s.writeData(w, http.StatusOK, "Vault items fetched", items)
}

func (s *Server) handleCreateVault(w http.ResponseWriter, r *http.Request) {
	var in newVaultItem
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := s.svc.createVaultItem(r.Context(), userIDFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeData(w, http.StatusCreated, "Vault item created", item)
}
