package approval

import (
	"bytes"
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
)

// ControllerRoutes holds the paths the controller mounts.
type ControllerRoutes struct {
	SignUp           string
	SignIn           string
	Federated        string
	Refresh          string
	Registrations    string
	Escalation       string
	Status           string
	Route            string
	SetApprovalAdmin string
	Approve          string
	Reject           string
	ResumeApproval   string
	AdminPending     string
	AdminIntents     string
	Health           string
}

// DefaultControllerRoutes returns the default route layout.
func DefaultControllerRoutes() *ControllerRoutes {
	return &ControllerRoutes{
		SignUp:           "/auth/signup",
		SignIn:           "/auth/signin",
		Federated:        "/auth/federated",
		Refresh:          "/auth/refresh",
		Registrations:    "/registrations",
		Escalation:       "/registrations/escalation",
		Status:           "/approval/status",
		Route:            "/approval/route",
		SetApprovalAdmin: "/functions/setApprovalAdmin",
		Approve:          "/functions/approveRegistration",
		Reject:           "/functions/rejectRegistration",
		ResumeApproval:   "/functions/resumeApproval",
		AdminPending:     "/admin/registrations",
		AdminIntents:     "/admin/intents",
		Health:           "/healthz",
	}
}

// ApprovalController exposes the approval flow over HTTP.
type ApprovalController struct {
	Debug      bool
	Logger     Logger
	Routes     *ControllerRoutes
	Accounts   AccountService
	Submit     *SubmitRegistrationHandler
	Escalation *EscalationHandler
	Decisions  *DecisionService
	Resolver   *Resolver
	Guards     *Guards
}

type ControllerOption func(*ApprovalController) *ApprovalController

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *ApprovalController) *ApprovalController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRoutes(routes *ControllerRoutes) ControllerOption {
	return func(c *ApprovalController) *ApprovalController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithControllerDebug(debug bool) ControllerOption {
	return func(c *ApprovalController) *ApprovalController {
		c.Debug = debug
		return c
	}
}

func NewApprovalController(accounts AccountService, store RecordStore, decisions *DecisionService, opts ...ControllerOption) *ApprovalController {
	resolver := NewResolver(store)
	c := &ApprovalController{
		Logger:     defLogger{},
		Routes:     DefaultControllerRoutes(),
		Accounts:   accounts,
		Submit:     NewSubmitRegistrationHandler(store),
		Escalation: NewEscalationHandler(store),
		Decisions:  decisions,
		Resolver:   resolver,
		Guards:     NewGuards(resolver),
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c
}

// WithSubmitHandler replaces the default submission handler.
func WithSubmitHandler(h *SubmitRegistrationHandler) ControllerOption {
	return func(c *ApprovalController) *ApprovalController {
		if h != nil {
			c.Submit = h
		}
		return c
	}
}

// WithEscalationHandler replaces the default escalation handler.
func WithEscalationHandler(h *EscalationHandler) ControllerOption {
	return func(c *ApprovalController) *ApprovalController {
		if h != nil {
			c.Escalation = h
		}
		return c
	}
}

// WithControllerResolver replaces the resolver used for status and guards.
func WithControllerResolver(r *Resolver) ControllerOption {
	return func(c *ApprovalController) *ApprovalController {
		if r != nil {
			c.Resolver = r
			c.Guards = NewGuards(r)
		}
		return c
	}
}

// RegisterRoutes mounts every endpoint on app.
func (a *ApprovalController) RegisterRoutes(app fiber.Router) {
	required := BearerAuth(BearerAuthConfig{Verifier: a.Accounts, Logger: a.Logger})
	optional := BearerAuth(BearerAuthConfig{Verifier: a.Accounts, Logger: a.Logger, Optional: true})

	app.Get(a.Routes.Health, a.Health)

	app.Post(a.Routes.SignUp, a.SignUp)
	app.Post(a.Routes.SignIn, a.SignIn)
	app.Post(a.Routes.Federated, a.FederatedSignIn)
	app.Post(a.Routes.Refresh, required, a.RefreshToken)

	app.Post(a.Routes.Registrations, required, a.SubmitRegistration)
	app.Post(a.Routes.Escalation, required, a.RequestEscalation)

	app.Get(a.Routes.Status, required, a.ApprovalStatus)
	app.Get(a.Routes.Route, optional, a.RouteDecision)

	app.Post(a.Routes.SetApprovalAdmin, required, a.SetApprovalAdmin)
	app.Post(a.Routes.Approve, required, a.ApproveRegistration)
	app.Post(a.Routes.Reject, required, a.RejectRegistration)
	app.Post(a.Routes.ResumeApproval, required, a.ResumeApproval)

	app.Get(a.Routes.AdminPending, required, a.ListPending)
	app.Get(a.Routes.AdminIntents, required, a.ListIntents)
}

func (a *ApprovalController) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules. Length and format checks are left to
// the identity provider so its messages reach the user verbatim.
func (r CredentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type FederatedRequest struct {
	IDToken string `json:"idToken"`
}

func (r FederatedRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDToken, validation.Required),
	)
}

func (a *ApprovalController) SignUp(c *fiber.Ctx) error {
	payload := CredentialsRequest{}
	if err := a.bind(c, &payload); err != nil {
		return a.fail(c, err)
	}

	session, err := a.Accounts.SignUpWithPassword(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return a.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (a *ApprovalController) SignIn(c *fiber.Ctx) error {
	payload := CredentialsRequest{}
	if err := a.bind(c, &payload); err != nil {
		return a.fail(c, err)
	}

	session, err := a.Accounts.SignInWithPassword(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(session)
}

func (a *ApprovalController) FederatedSignIn(c *fiber.Ctx) error {
	payload := FederatedRequest{}
	if err := a.bind(c, &payload); err != nil {
		return a.fail(c, err)
	}

	session, err := a.Accounts.SignInWithFederatedToken(c.UserContext(), payload.IDToken)
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(session)
}

func (a *ApprovalController) RefreshToken(c *fiber.Ctx) error {
	caller, _ := CallerFromFiber(c)
	session, err := a.Accounts.Refresh(c.UserContext(), caller.UID)
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(session)
}

type SubmitRegistrationRequest struct {
	Role     string         `json:"role"`
	Payload  map[string]any `json:"payload"`
	Provider string         `json:"provider"`
}

func (r SubmitRegistrationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, validation.In(string(RoleParent), string(RoleTeacher))),
		validation.Field(&r.Provider, validation.In(string(ProviderPassword), string(ProviderGoogle))),
	)
}

func (a *ApprovalController) SubmitRegistration(c *fiber.Ctx) error {
	payload := SubmitRegistrationRequest{}
	if err := a.bind(c, &payload); err != nil {
		return a.fail(c, err)
	}

	submission, err := a.Submit.Execute(c.UserContext(), a.user(c), SubmitRegistrationMessage{
		Role:     payload.Role,
		Payload:  payload.Payload,
		Provider: payload.Provider,
	})
	if err != nil {
		return a.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(submission)
}

func (a *ApprovalController) RequestEscalation(c *fiber.Ctx) error {
	submission, err := a.Escalation.RequestEscalation(c.UserContext(), a.user(c))
	if err != nil {
		return a.fail(c, err)
	}
	return c.JSON(submission)
}

// StatusResponse is the resolved approval view plus the registration predicate.
type StatusResponse struct {
	ApprovalStatus
	NeedsRegistration bool `json:"needsRegistration"`
}

func (a *ApprovalController) ApprovalStatus(c *fiber.Ctx) error {
	user := a.user(c)
	status := a.Resolver.Resolve(c.UserContext(), user)
	return c.JSON(StatusResponse{
		ApprovalStatus:    status,
		NeedsRegistration: a.Resolver.NeedsRegistration(c.UserContext(), user),
	})
}

var routeTargets = map[string]string{
	"entry":    RouteHome,
	"register": RouteRegister,
	"admin":    RouteAdminApprovals,
}

func (a *ApprovalController) RouteDecision(c *fiber.Ctx) error {
	target := c.Query("target", "entry")
	route, ok := routeTargets[target]
	if !ok {
		return a.fail(c, errorf(ErrInvalidArgument, map[string]any{"target": target}, "unknown route target"))
	}

	var user User
	if _, ok := CallerFromFiber(c); ok {
		user = a.user(c)
	}

	return c.JSON(a.Guards.Check(c.UserContext(), route, user))
}

type UIDRequest struct {
	UID string `json:"uid"`
}

type RejectRequest struct {
	UID    string `json:"uid"`
	Reason string `json:"reason"`
}

type ResumeRequest struct {
	IntentID string `json:"intentId"`
}

func (a *ApprovalController) SetApprovalAdmin(c *fiber.Ctx) error {
	payload := UIDRequest{}
	if err := a.bind(c, &payload); err != nil {
		return a.fail(c, err)
	}

	caller, _ := CallerFromFiber(c)
	if err := a.Decisions.SetApprovalAdmin(c.UserContext(), caller, payload.UID); err != nil {
		return a.fail(c, err)
	}
	return a.success(c)
}

func (a *ApprovalController) ApproveRegistration(c *fiber.Ctx) error {
	payload := UIDRequest{}
	if err := a.bind(c, &payload); err != nil {
		return a.fail(c, err)
	}

	caller, _ := CallerFromFiber(c)
	if err := a.Decisions.Approve(c.UserContext(), caller, payload.UID); err != nil {
		return a.fail(c, err)
	}
	return a.success(c)
}

func (a *ApprovalController) RejectRegistration(c *fiber.Ctx) error {
	payload := RejectRequest{}
	if err := a.bind(c, &payload); err != nil {
		return a.fail(c, err)
	}

	caller, _ := CallerFromFiber(c)
	if err := a.Decisions.Reject(c.UserContext(), caller, payload.UID, payload.Reason); err != nil {
		return a.fail(c, err)
	}
	return a.success(c)
}

func (a *ApprovalController) ResumeApproval(c *fiber.Ctx) error {
	payload := ResumeRequest{}
	if err := a.bind(c, &payload); err != nil {
		return a.fail(c, err)
	}

	caller, _ := CallerFromFiber(c)
	if err := a.Decisions.ResumeApproval(c.UserContext(), caller, payload.IntentID); err != nil {
		return a.fail(c, err)
	}
	return a.success(c)
}

func (a *ApprovalController) ListPending(c *fiber.Ctx) error {
	caller, _ := CallerFromFiber(c)
	records, err := a.Decisions.ListPending(c.UserContext(), caller)
	if err != nil {
		return a.fail(c, err)
	}
	if records == nil {
		records = []*PendingSubmission{}
	}
	return c.JSON(fiber.Map{"registrations": records})
}

func (a *ApprovalController) ListIntents(c *fiber.Ctx) error {
	caller, _ := CallerFromFiber(c)
	intents, err := a.Decisions.OpenApprovals(c.UserContext(), caller)
	if err != nil {
		return a.fail(c, err)
	}
	if intents == nil {
		intents = []*ApprovalIntent{}
	}
	return c.JSON(fiber.Map{"intents": intents})
}

// user adapts the verified caller into a User whose forced refreshes go
// through the account service.
func (a *ApprovalController) user(c *fiber.Ctx) User {
	caller, ok := CallerFromFiber(c)
	if !ok {
		return nil
	}
	return CallerUser(caller, a.Accounts)
}

func (a *ApprovalController) success(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": fiber.Map{"success": true}})
}

func (a *ApprovalController) fail(c *fiber.Ctx, err error) error {
	if a.Debug {
		a.Logger.Debug("request error", "path", c.Path(), "kind", ErrorKind(err), "error", err)
	}
	return WriteError(c, a.Logger, err)
}

type validatable interface {
	Validate() error
}

// bind decodes the request body into out. Callable requests may wrap their
// arguments in {"data": {...}}; bare objects are accepted too.
func (a *ApprovalController) bind(c *fiber.Ctx, out any) error {
	body := bytes.TrimSpace(c.Body())
	if len(body) > 0 {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return errorf(ErrInvalidArgument, nil, "malformed request body")
		}

		raw := body
		if len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
			raw = envelope.Data
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return errorf(ErrInvalidArgument, nil, "malformed request body")
		}
	}

	if v, ok := out.(validatable); ok {
		if err := v.Validate(); err != nil {
			meta := map[string]any{}
			if errs, ok := err.(validation.Errors); ok {
				for field, fieldErr := range errs {
					meta[field] = fieldErr.Error()
				}
			}
			return errorf(ErrInvalidArgument, meta, "%s", err.Error())
		}
	}
	return nil
}
