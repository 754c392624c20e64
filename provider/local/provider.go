package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-approval"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// MinPasswordLength is the shortest password accepted on sign up.
	MinPasswordLength = 8
	// MaxClaimsBytes caps the serialized size of custom claims.
	MaxClaimsBytes = 1000
)

// Schema creates the accounts table.
var Schema = `CREATE TABLE IF NOT EXISTS accounts (
	uid TEXT NOT NULL PRIMARY KEY,
	email TEXT UNIQUE,
	email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	password_hash TEXT,
	provider TEXT NOT NULL,
	provider_subject TEXT,
	custom_claims TEXT,
	created_at TIMESTAMP NULL,
	updated_at TIMESTAMP NULL
);`

// Account is a user known to the identity provider.
type Account struct {
	bun.BaseModel   `bun:"table:accounts,alias:acc"`
	UID             string            `bun:"uid,pk" json:"uid"`
	Email           string            `bun:"email,nullzero" json:"email,omitempty"`
	EmailVerified   bool              `bun:"email_verified,notnull" json:"emailVerified"`
	PasswordHash    string            `bun:"password_hash" json:"-"`
	AuthProvider    approval.Provider `bun:"provider,notnull" json:"provider"`
	ProviderSubject string            `bun:"provider_subject" json:"-"`
	CustomClaims    map[string]any    `bun:"custom_claims" json:"customClaims,omitempty"`
	CreatedAt       *time.Time        `bun:"created_at,nullzero" json:"createdAt,omitempty"`
	UpdatedAt       *time.Time        `bun:"updated_at,nullzero" json:"updatedAt,omitempty"`
}

// Option customizes the provider.
type Option func(*Provider)

func WithLogger(logger approval.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFederatedVerifier enables SignInWithFederatedToken.
func WithFederatedVerifier(v FederatedVerifier) Option {
	return func(p *Provider) {
		p.federated = v
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// Provider implements approval.IdentityProvider and approval.AccountService.
type Provider struct {
	db        *bun.DB
	tokens    *approval.TokenService
	federated FederatedVerifier
	logger    approval.Logger
	now       func() time.Time
}

var (
	_ approval.IdentityProvider = (*Provider)(nil)
	_ approval.AccountService   = (*Provider)(nil)
)

func New(db *bun.DB, tokens *approval.TokenService, opts ...Option) *Provider {
	p := &Provider{
		db:     db,
		tokens: tokens,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// CreateSchema creates the accounts table when missing.
func (p *Provider) CreateSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return err
}

func (p *Provider) SignUpWithPassword(ctx context.Context, email, password string) (*approval.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	if _, err := p.findByEmail(ctx, email); err == nil {
		return nil, withMeta(ErrEmailInUse, map[string]any{"email": email})
	} else if !approval.IsNotFound(err) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		AuthProvider: approval.ProviderPassword,
		CustomClaims: map[string]any{},
	}
	if err := p.insert(ctx, account); err != nil {
		if errors.Is(err, errEmailTaken) {
			return nil, withMeta(ErrEmailInUse, map[string]any{"email": email})
		}
		return nil, err
	}

	p.logger.Info("account created", "uid", account.UID, "provider", account.AuthProvider)
	return p.issue(ctx, account)
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*approval.Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	account, err := p.findByEmail(ctx, email)
	if err != nil {
		if approval.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if account.AuthProvider != approval.ProviderPassword || account.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p.issue(ctx, account)
}

// SignInWithFederatedToken signs in, creating the account on first use.
func (p *Provider) SignInWithFederatedToken(ctx context.Context, idToken string) (*approval.Session, error) {
	if p.federated == nil {
		return nil, errors.New("federated sign in is not configured", errors.CategoryBadInput).
			WithTextCode(approval.TextCodeFailedPrecondition).
			WithCode(errors.CodeBadRequest)
	}

	ident, err := p.federated.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if ident.Email != "" && !ident.EmailVerified {
		return nil, withMeta(ErrEmailNotVerified, map[string]any{"email": ident.Email, "provider": ident.Provider})
	}

	uid, err := federatedUID(ident)
	if err != nil {
		return nil, err
	}

	account, err := p.findByUID(ctx, uid)
	if err == nil {
		return p.issue(ctx, account)
	}
	if !approval.IsNotFound(err) {
		return nil, err
	}

	if ident.Email != "" {
		if existing, err := p.findByEmail(ctx, ident.Email); err == nil {
			return nil, withMeta(ErrAccountExistsWithDifferentCredential, map[string]any{
				"email":    ident.Email,
				"provider": existing.AuthProvider,
			})
		} else if !approval.IsNotFound(err) {
			return nil, err
		}
	}

	account = &Account{
		UID:             uid,
		Email:           ident.Email,
		EmailVerified:   ident.Email != "",
		AuthProvider:    ident.Provider,
		ProviderSubject: ident.Subject,
		CustomClaims:    map[string]any{},
	}
	if err := p.insert(ctx, account); err != nil {
		if errors.Is(err, errEmailTaken) {
			return nil, withMeta(ErrAccountExistsWithDifferentCredential, map[string]any{"email": ident.Email})
		}
		return nil, err
	}

	p.logger.Info("account created", "uid", account.UID, "provider", account.AuthProvider)
	return p.issue(ctx, account)
}

func (p *Provider) GetCustomClaims(ctx context.Context, uid string) (approval.Claims, error) {
	account, err := p.findByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return approval.Claims(account.CustomClaims).Clone(), nil
}

// SetCustomClaims replaces the custom claims of uid. Callers merge.
func (p *Provider) SetCustomClaims(ctx context.Context, uid string, claims approval.Claims) error {
	raw, err := json.Marshal(claims)
	if err != nil {
		return withMeta(ErrClaimsTooLarge, map[string]any{"error": err.Error()})
	}
	if len(raw) > MaxClaimsBytes {
		return withMeta(ErrClaimsTooLarge, map[string]any{"bytes": len(raw)})
	}

	res, err := p.db.NewUpdate().
		Model((*Account)(nil)).
		Set("custom_claims = ?", string(raw)).
		Set("updated_at = ?", p.now()).
		Where("uid = ?", uid).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update custom claims")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return withMeta(ErrUserNotFound, map[string]any{"uid": uid})
	}

	p.logger.Debug("custom claims updated", "uid", uid)
	return nil
}

// Refresh re-issues a token carrying the current claims of uid.
func (p *Provider) Refresh(ctx context.Context, uid string) (*approval.Session, error) {
	account, err := p.findByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return p.issue(ctx, account)
}

func (p *Provider) Verify(_ context.Context, token string) (*approval.Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, approval.ErrUnauthenticated
	}

	claims, err := p.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	return &approval.Caller{
		UID:           claims.UserID(),
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Claims:        claims.Custom(),
	}, nil
}

func (p *Provider) issue(ctx context.Context, account *Account) (*approval.Session, error) {
	claims := approval.Claims(account.CustomClaims).Clone()
	token, expiresAt, err := p.tokens.Generate(ctx, accountIdentity{account}, claims)
	if err != nil {
		return nil, err
	}

	return &approval.Session{
		UID:       account.UID,
		Email:     account.Email,
		Provider:  account.AuthProvider,
		Token:     token,
		ExpiresAt: expiresAt,
		Claims:    claims,
	}, nil
}

// errEmailTaken reports that the email unique index rejected an insert.
var errEmailTaken = errors.New("email already registered", errors.CategoryConflict)

// insert creates account. A concurrent insert with the same email loses on
// the unique index and gets errEmailTaken.
func (p *Provider) insert(ctx context.Context, account *Account) error {
	now := p.now()
	account.CreatedAt = &now
	account.UpdatedAt = &now

	res, err := p.db.NewInsert().
		Model(account).
		On("CONFLICT (email) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create account")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errEmailTaken
	}
	return nil
}

func (p *Provider) findByUID(ctx context.Context, uid string) (*Account, error) {
	return p.findOne(ctx, "uid", uid)
}

func (p *Provider) findByEmail(ctx context.Context, email string) (*Account, error) {
	return p.findOne(ctx, "email", email)
}

func (p *Provider) findOne(ctx context.Context, column, value string) (*Account, error) {
	record := &Account{}
	err := p.db.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, withMeta(ErrUserNotFound, map[string]any{column: value})
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read account")
	}
	if record.CustomClaims == nil {
		record.CustomClaims = map[string]any{}
	}
	return record, nil
}

// federatedUID derives a stable uid from the provider and subject.
func federatedUID(ident *FederatedIdentity) (string, error) {
	id, err := hashid.NewUUID(fmt.Sprintf("%s:%s", ident.Provider, ident.Subject))
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to derive uid")
	}
	return id.String(), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// accountIdentity adapts an Account to approval.Identity.
type accountIdentity struct {
	account *Account
}

func (a accountIdentity) ID() string                  { return a.account.UID }
func (a accountIdentity) Email() string               { return a.account.Email }
func (a accountIdentity) EmailVerified() bool         { return a.account.EmailVerified }
func (a accountIdentity) Provider() approval.Provider { return a.account.AuthProvider }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
