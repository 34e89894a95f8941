package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/admin"
	"pharmfinder/m/internal/backend"
	"pharmfinder/m/internal/cart"
	"pharmfinder/m/internal/checkout"
	"pharmfinder/m/internal/geo"
	"pharmfinder/m/internal/logging"
	"pharmfinder/m/internal/prescription"
	"pharmfinder/m/internal/search"
	"pharmfinder/m/internal/seed"
)

type ctxKey string

const (
	ctxAdminID ctxKey = "adminID"
	ctxDevice  ctxKey = "device"
)

// DeviceHeader identifies the device whose cart, location and order history
// a request works on.
const DeviceHeader = "X-Device-ID"

// Lookup is the direct backend reads the handlers need.
type Lookup interface {
	GetMedication(ctx context.Context, id int64) (domain.Medication, error)
	GetPharmacy(ctx context.Context, id int64) (domain.Pharmacy, error)
}

// Services are the application services behind the routes.
type Services struct {
	Lookup        Lookup
	Search        *search.Service
	Locations     *geo.Cache
	Carts         *cart.Service
	Checkout      *checkout.Service
	Prescriptions *prescription.Service
	Admin         *admin.Service
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db      *sqlx.DB
	secret  string
	origins []string
	logger  *zap.Logger
	svc     Services
}

// New constructs a Handler. db holds the admin accounts.
func New(db *sqlx.DB, secret string, origins []string, logger *zap.Logger, svc Services) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handler{db: db, secret: secret, origins: origins, logger: logger, svc: svc}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	// Credentials are only shared with an explicit origin list.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", DeviceHeader},
		ExposedHeaders:   []string{DeviceHeader},
		AllowCredentials: !slices.Contains(h.origins, "*"),
	}))
	r.Use(middleware.RequestID)
	r.Use(logging.Requests(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Post("/auth/login", h.login)

	r.Route("/api", func(r chi.Router) {
		r.Use(deviceMiddleware)

		r.Get("/medications", h.listMedications)
		r.Get("/medications/{id}", h.getMedication)
		r.Get("/pharmacies", h.searchPharmacies)
		r.Get("/pharmacies/{id}", h.getPharmacy)
		r.Post("/search/multi", h.multiSearch)

		r.Route("/location", func(r chi.Router) {
			r.Get("/", h.getLocation)
			r.Post("/", h.reportLocation)
			r.Delete("/", h.clearLocation)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Post("/items/bulk", h.addCartItems)
			r.Put("/items/{medicationID}", h.updateCartItem)
			r.Delete("/items/{medicationID}", h.removeCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.orderHistory)
			r.Post("/", h.placeOrder)
		})

		r.Post("/prescriptions/scan", h.scanPrescription)
		r.Post("/prescriptions/extract", h.extractPrescription)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.authMiddleware)

		r.Get("/overview", h.adminOverview)
		r.Route("/pharmacies", func(r chi.Router) {
			r.Post("/", h.createPharmacy)
			r.Put("/{id}", h.updatePharmacy)
			r.Delete("/{id}", h.deletePharmacy)
			r.Get("/{id}/stocks", h.pharmacyStocks)
			r.Post("/{id}/stocks", h.addStock)
		})
		r.Route("/medications", func(r chi.Router) {
			r.Post("/", h.createMedication)
			r.Post("/import", h.importMedications)
			r.Put("/{id}", h.updateMedication)
			r.Delete("/{id}", h.deleteMedication)
		})
		r.Route("/stocks", func(r chi.Router) {
			r.Put("/{id}", h.setStock)
			r.Delete("/{id}", h.deleteStock)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// deviceMiddleware scopes the request to the caller's device, issuing a new
// id when none or an unusable one is sent.
func deviceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device := strings.TrimSpace(r.Header.Get(DeviceHeader))
		if device == "" || len(device) > 128 {
			device = uuid.NewString()
		}
		w.Header().Set(DeviceHeader, device)
		ctx := context.WithValue(r.Context(), ctxDevice, device)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func deviceFrom(r *http.Request) string {
	device, _ := r.Context().Value(ctxDevice).(string)
	return device
}

// Authentication helpers

type authClaims struct {
	AdminID int64  `json:"admin_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(a domain.Admin) (string, error) {
	claims := authClaims{
		AdminID: a.ID,
		Email:   a.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, backend.MsgUnauthorized)
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, backend.MsgUnauthorized)
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, backend.MsgUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxAdminID, claims.AdminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	Admin domain.Admin `json:"admin"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
		return
	}

	var a domain.Admin
	err := h.db.GetContext(r.Context(), &a, h.db.Rebind(`SELECT id, email, password FROM admins WHERE email = ?`), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Identifiants invalides")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "Identifiants invalides")
		return
	}

	token, err := h.generateToken(a)
	if err != nil {
		h.logger.Error("unable to sign token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, backend.MsgUnknown)
		return
	}
	a.Password = ""
	h.logger.Info("admin logged in", zap.Int64("admin_id", a.ID))
	respondJSON(w, http.StatusOK, authResponse{Token: token, Admin: a})
}

// Helpers

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps service errors to a status and their user message.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *backend.APIError
	var locErr *geo.LocateError
	switch {
	case errors.As(err, &apiErr):
		respondError(w, apiErr.Kind.HTTPStatus(), apiErr.Message)
	case errors.As(err, &locErr):
		status := http.StatusUnprocessableEntity
		if errors.Is(err, geo.ErrPermissionDenied) {
			status = http.StatusForbidden
		}
		respondError(w, status, locErr.Message)
	case errors.Is(err, cart.ErrInvalidItem):
		respondError(w, http.StatusBadRequest, backend.MsgBadRequest)
	case errors.Is(err, seed.ErrNoNameColumn):
		respondError(w, http.StatusBadRequest, "Le fichier CSV doit contenir une colonne nom")
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, backend.MsgUnknown)
	}
}
