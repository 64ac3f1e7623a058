package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/utils"
)

// CustomerAccounts is implemented by repository.CustomerRepo.
type CustomerAccounts interface {
	Create(ctx context.Context, c *model.Customer, password string, cost int) error
	GetByLoginID(ctx context.Context, loginID string) (model.Customer, error)
	GetByID(ctx context.Context, id uint64) (model.Customer, error)
}

// RestaurantAccounts is implemented by repository.RestaurantRepo.
type RestaurantAccounts interface {
	Create(ctx context.Context, r *model.Restaurant, password string, cost int) error
	GetByLoginID(ctx context.Context, loginID string) (model.Restaurant, error)
	GetByID(ctx context.Context, id uint64) (model.Restaurant, error)
}

// RefreshTokens is implemented by repository.TokenRepo.
type RefreshTokens interface {
	StoreRefresh(ctx context.Context, subjectID uint64, role, tokenHash string, exp time.Time) error
	ConsumeRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForSubject(ctx context.Context, subjectID uint64, role string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg         config.Config
	Customers   CustomerAccounts
	Restaurants RestaurantAccounts
	Tokens      RefreshTokens
	Log         zerolog.Logger
}

func NewAuthHandler(cfg config.Config, cu CustomerAccounts, re RestaurantAccounts, t RefreshTokens, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Customers: cu, Restaurants: re, Tokens: t, Log: log}
}

// ----- DTOs -----

type registerCustomerReq struct {
	LoginID     string `json:"loginId" validate:"required,min=3,max=50"`
	Password    string `json:"password" validate:"required,min=4,max=72"`
	Name        string `json:"name" validate:"required,max=100"`
	PhoneNumber string `json:"phoneNumber" validate:"required,max=20"`
}

type registerRestaurantReq struct {
	LoginID  string `json:"loginId" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=4,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

type loginReq struct {
	LoginID  string `json:"loginId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutReq struct {
	RefreshToken string `json:"refreshToken"`
	All          bool   `json:"all"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type accountPart struct {
	ID      uint64 `json:"id"`
	LoginID string `json:"loginId"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

type authResp struct {
	Account accountPart `json:"account"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

func (h *AuthHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	d := h.Cfg.DBQueryTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// RegisterCustomer creates a customer account and returns a token pair.
func (h *AuthHandler) RegisterCustomer(c echo.Context) error {
	var req registerCustomerReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	cu := &model.Customer{LoginID: req.LoginID, Name: strings.TrimSpace(req.Name), PhoneNumber: strings.TrimSpace(req.PhoneNumber)}
	if err := h.Customers.Create(ctx, cu, req.Password, h.Cfg.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "loginId or phoneNumber already registered"})
		}
		h.Log.Error().Err(err).Msg("create customer")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create account failed"})
	}
	return h.issue(ctx, c, http.StatusCreated, accountPart{ID: cu.ID, LoginID: cu.LoginID, Name: cu.Name, Role: model.RoleCustomer})
}

// RegisterRestaurant creates a restaurant account and returns a token pair.
func (h *AuthHandler) RegisterRestaurant(c echo.Context) error {
	var req registerRestaurantReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	r := &model.Restaurant{LoginID: req.LoginID, Name: strings.TrimSpace(req.Name)}
	if err := h.Restaurants.Create(ctx, r, req.Password, h.Cfg.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "loginId already registered"})
		}
		h.Log.Error().Err(err).Msg("create restaurant")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create account failed"})
	}
	return h.issue(ctx, c, http.StatusCreated, accountPart{ID: r.ID, LoginID: r.LoginID, Name: r.Name, Role: model.RoleRestaurant})
}

// LoginCustomer verifies customer credentials.
func (h *AuthHandler) LoginCustomer(c echo.Context) error {
	return h.login(c, model.RoleCustomer)
}

// LoginRestaurant verifies restaurant credentials.
func (h *AuthHandler) LoginRestaurant(c echo.Context) error {
	return h.login(c, model.RoleRestaurant)
}

func (h *AuthHandler) login(c echo.Context, role string) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	acc, err := h.lookupLogin(ctx, role, req.LoginID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		h.Log.Error().Err(err).Str("role", role).Msg("load account")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(acc.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(ctx, c, http.StatusOK, acc.accountPart)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued for the same subject.  A token can be rotated only once.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := h.ctx(c)
	defer cancel()

	subjectID, role, err := h.Tokens.ConsumeRefresh(ctx, hash, time.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
	}
	if err != nil {
		h.Log.Error().Err(err).Msg("consume refresh token")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	acc, err := h.lookupID(ctx, role, subjectID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account no longer exists"})
	}
	return h.issue(ctx, c, http.StatusOK, acc)
}

// Logout revokes the given refresh token.  With "all": true and a valid
// bearer token, every refresh token of the caller is revoked.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if req.All {
		raw, _ := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimSpace(raw))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "valid access token required"})
		}
		if err := h.Tokens.RevokeAllForSubject(ctx, claims.SubjectID, claims.Role); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "logged out everywhere"})
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refreshToken required"})
	}
	if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me returns the authenticated account's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.SubjectID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	switch middleware.Role(c) {
	case model.RoleCustomer:
		cu, err := h.Customers.GetByID(ctx, id)
		if err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusOK, echo.Map{"role": model.RoleCustomer, "customer": cu})
	case model.RoleRestaurant:
		r, err := h.Restaurants.GetByID(ctx, id)
		if err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
		}
		return c.JSON(http.StatusOK, echo.Map{"role": model.RoleRestaurant, "restaurant": r})
	}
	return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}

type loginAccount struct {
	accountPart
	PasswordHash string
}

func (h *AuthHandler) lookupLogin(ctx context.Context, role, loginID string) (loginAccount, error) {
	if role == model.RoleCustomer {
		cu, err := h.Customers.GetByLoginID(ctx, loginID)
		if err != nil {
			return loginAccount{}, err
		}
		return loginAccount{accountPart{cu.ID, cu.LoginID, cu.Name, role}, cu.PasswordHash}, nil
	}
	r, err := h.Restaurants.GetByLoginID(ctx, loginID)
	if err != nil {
		return loginAccount{}, err
	}
	return loginAccount{accountPart{r.ID, r.LoginID, r.Name, role}, r.PasswordHash}, nil
}

func (h *AuthHandler) lookupID(ctx context.Context, role string, id uint64) (accountPart, error) {
	switch role {
	case model.RoleCustomer:
		cu, err := h.Customers.GetByID(ctx, id)
		return accountPart{cu.ID, cu.LoginID, cu.Name, role}, err
	case model.RoleRestaurant:
		r, err := h.Restaurants.GetByID(ctx, id)
		return accountPart{r.ID, r.LoginID, r.Name, role}, err
	}
	return accountPart{}, errors.New("unknown role " + role)
}

// issue signs an access token, stores a new refresh token and writes both.
func (h *AuthHandler) issue(ctx context.Context, c echo.Context, status int, acc accountPart) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, acc.ID, acc.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, acc.ID, acc.Role, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		h.Log.Error().Err(err).Msg("store refresh token")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}
	return c.JSON(status, authResp{
		Account: acc,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}
