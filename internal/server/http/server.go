package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/onepass-app/onepass-server/internal/errs"
	"github.com/onepass-app/onepass-server/internal/model"
	"github.com/onepass-app/onepass-server/internal/service"
	"github.com/onepass-app/onepass-server/internal/token"
)

// Server wires services into HTTP handlers.
type Server struct {
	issuer      service.PassIssuer
	validator   service.EntryValidator
	revoker     service.PassRevoker
	provisioner service.Provisioner
	log         *zap.Logger
}

// New constructs the handler set with injected services.
func New(issuer service.PassIssuer, validator service.EntryValidator,
	revoker service.PassRevoker, provisioner service.Provisioner, log *zap.Logger) *Server {
	return &Server{
		issuer:      issuer,
		validator:   validator,
		revoker:     revoker,
		provisioner: provisioner,
		log:         log,
	}
}

// Router builds the gin engine with middleware and routes. ping may be nil
// (health then reports only process liveness).
func (s *Server) Router(signKey []byte, ping func(ctx context.Context) error) *gin.Engine {
	r := gin.New()
	r.Use(Recover(s.log), Logging(s.log), cors.Default(), Authenticate(signKey))

	r.GET("/healthz", func(c *gin.Context) {
		if ping != nil {
			if err := ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.POST("/entry/validate", s.validateEntry)
	v1.POST("/pass", s.generatePass)
	v1.POST("/pass/revoke", s.revokePass)
	v1.POST("/hooks/user-created", s.userCreated)
	v1.POST("/hooks/user-record-created", s.userCreated)
	return r
}

type validateRequest struct {
	QRText  string `json:"qr_text"`
	EventID string `json:"event_id"`
}

type validateResponse struct {
	Status    string     `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	TicketID  string     `json:"ticket_id,omitempty"`
	ScannedAt *time.Time `json:"scanned_at,omitempty"`
	Remaining *int       `json:"remaining,omitempty"`

	// Prior redemption, present on ALREADY_SCANNED race losses.
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	ScannedBy  string     `json:"scanned_by,omitempty"`
}

func (s *Server) validateEntry(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.validator.Validate(c.Request.Context(), service.ValidateInput{
		Caller:  caller(c),
		QRText:  req.QRText,
		EventID: req.EventID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toValidateResponse(res))
}

func toValidateResponse(res *service.ValidateResult) validateResponse {
	if !res.Accepted {
		return validateResponse{
			Status:     "rejected",
			Reason:     res.Reason,
			RedeemedAt: res.PriorRedeemedAt,
			ScannedBy:  res.PriorScannedBy,
		}
	}
	at := res.ScannedAt
	rem := res.Remaining
	return validateResponse{
		Status:    "accepted",
		TicketID:  res.TicketID,
		ScannedAt: &at,
		Remaining: &rem,
	}
}

type passResponse struct {
	UID       string `json:"uid"`
	KeyID     string `json:"key_id"`
	IssuedAt  int64  `json:"issued_at"`
	Version   int    `json:"version"`
	Active    bool   `json:"active"`
	Signature string `json:"signature"`
	QRText    string `json:"qr_text"`
}

// generatePass returns the caller's own pass, issuing one if needed.
func (s *Server) generatePass(c *gin.Context) {
	cl := caller(c)
	if cl.UID == "" {
		s.fail(c, errs.ErrUnauthenticated)
		return
	}
	pass, err := s.issuer.IssueOrGet(c.Request.Context(), cl.UID)
	if err != nil {
		s.fail(c, err)
		return
	}
	payload, err := token.EncodePayload(token.Payload{
		UID: pass.OwnerUserID, KID: pass.KeyID, IAT: pass.IssuedAt, Ver: pass.Version,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, passResponse{
		UID:       pass.OwnerUserID,
		KeyID:     pass.KeyID,
		IssuedAt:  pass.IssuedAt,
		Version:   pass.Version,
		Active:    pass.Active,
		Signature: pass.Signature,
		QRText:    token.BuildCredential(payload, pass.Signature),
	})
}

type revokeRequest struct {
	TargetUID string `json:"target_uid"`
	Reason    string `json:"reason"`
}

func (s *Server) revokePass(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.revoker.Revoke(c.Request.Context(), caller(c), req.TargetUID, req.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": res.Success, "message": res.Message})
}

type userCreatedRequest struct {
	UID string `json:"uid"`
}

// userCreated serves both trigger variants; delivery infrastructure
// authenticates with the SERVICE role (ADMIN accepted for manual replays).
func (s *Server) userCreated(c *gin.Context) {
	cl := caller(c)
	if cl.UID == "" {
		s.fail(c, errs.ErrUnauthenticated)
		return
	}
	if cl.Role != model.RoleService && cl.Role != model.RoleAdmin {
		s.fail(c, errs.ErrPermissionDenied)
		return
	}
	var req userCreatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.provisioner.HandleUserCreated(c.Request.Context(), req.UID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// fail maps sentinel errors onto status codes in one place.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.Is(err, errs.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
	case errors.Is(err, errs.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.log.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
