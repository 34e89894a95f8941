package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/admin"
	"pharmfinder/m/internal/backend"
	"pharmfinder/m/internal/cart"
	"pharmfinder/m/internal/checkout"
	"pharmfinder/m/internal/database"
	"pharmfinder/m/internal/geo"
	"pharmfinder/m/internal/migrations"
	"pharmfinder/m/internal/prescription"
	"pharmfinder/m/internal/search"
	"pharmfinder/m/internal/seed"
	"pharmfinder/m/internal/store"
)

const testSecret = "test-secret"

// fakeBackend imitates the pharmacy REST backend.
type fakeBackend struct {
	mu        sync.Mutex
	orders    []domain.OrderRequest
	stockPuts []domain.PharmacyMedication
	lastQuery string
}

func (f *fakeBackend) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/medications/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"count":2,"results":[
			{"id":1,"nom":"Paracétamol","categorie":"Antalgique","prix":500,"min_stock":10},
			{"id":2,"nom":"Amoxicilline","categorie":"Antibiotique","prix":2500,"min_stock":0}]}`)
	})
	r.Get("/api/medications/{id}/", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"id":1,"nom":"Paracétamol","prix":500}`)
	})
	r.Get("/api/pharmacies/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastQuery = r.URL.RawQuery
		f.mu.Unlock()
		_, _ = io.WriteString(w, `[
			{"id":1,"nom":"Pharmacie A","adresse":"Centre","note":"4.5","distance_km":3.2,"assurances_acceptees":"[\"CNAMGS\"]"},
			{"id":2,"nom":"Pharmacie B","adresse":"Nord","note":"3.9","distance_km":1.1,"assurances_acceptees":["Ascoma"]}]`)
	})
	r.Get("/api/pharmacies/{id}/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":1,"nom":"Pharmacie A","opening_time":"08:00:00","closing_time":"20:00:00"}`)
	})
	r.Post("/api/pharmacies/find-by-medications/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id":1,"nom":"Pharmacie A","medications":[{"id":1,"nom":"Paracétamol","prix":500}]},
			{"id":2,"nom":"Pharmacie B","medications":[{"id":1,"nom":"Paracétamol","prix":450},{"id":2,"nom":"Amoxicilline","prix":2400}]}]`)
	})
	r.Get("/api/pharmacies/{id}/stocks/", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `[{"id":7,"pharmacy":1,"medication":1,"stock":4,"pharmacy_medication_price":600}]`)
	})
	r.Put("/api/pharmacy-medications/{id}/", func(w http.ResponseWriter, r *http.Request) {
		var line domain.PharmacyMedication
		_ = json.NewDecoder(r.Body).Decode(&line)
		f.mu.Lock()
		f.stockPuts = append(f.stockPuts, line)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(line)
	})
	r.Post("/api/orders/", func(w http.ResponseWriter, r *http.Request) {
		var order domain.OrderRequest
		_ = json.NewDecoder(r.Body).Decode(&order)
		f.mu.Lock()
		f.orders = append(f.orders, order)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":77,"status":"pending"}`)
	})
	r.Post("/api/scan-prescription/", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("image"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"text_detected":"Paracétamol 500mg","medications":[],"medication_ids":[],"message":"ok"}`)
	})
	r.Post("/api/extract-medications-from-text/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"text_detected":"x","medications":[{"id":1,"nom":"Paracétamol","confidence":0.9}],"message":"1 trouvé"}`)
	})
	return r
}

type testEnv struct {
	server  *httptest.Server
	backend *fakeBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fb := &fakeBackend{}
	upstream := httptest.NewServer(fb.routes())
	t.Cleanup(upstream.Close)

	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	require.NoError(t, seed.EnsureAdmin(context.Background(), db, "admin@pharmfinder.test", "s3cret", zap.NewNop()))

	logger := zap.NewNop()
	client := backend.New(upstream.URL+"/api", 2*time.Second, logger)
	st := store.NewSQLStore(db)
	locations := geo.NewCache(st, logger)
	carts := cart.NewService(st, logger)

	h := New(db, testSecret, nil, logger, Services{
		Lookup:        client,
		Search:        search.NewService(client, locations, logger),
		Locations:     locations,
		Carts:         carts,
		Checkout:      checkout.NewService(carts, client, db, logger),
		Prescriptions: prescription.NewService(client, prescription.BackendExtractor{Backend: client}, logger),
		Admin:         admin.NewService(client, logger),
	})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, backend: fb}
}

func (e *testEnv) do(t *testing.T, method, path, device string, body any, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if device != "" {
		req.Header.Set(DeviceHeader, device)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "Admin@PharmFinder.test", Password: "s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[authResponse](t, resp).Token
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", "", nil, "Origin", "https://evil.example")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestCORS_ExplicitOriginsWithCredentials(t *testing.T) {
	h := New(nil, testSecret, []string{"https://pharmfinder.ga"}, nil, Services{})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	get := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	allowed := get("https://pharmfinder.ga")
	assert.Equal(t, "https://pharmfinder.ga", allowed.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", allowed.Header.Get("Access-Control-Allow-Credentials"))

	other := get("https://evil.example")
	assert.Empty(t, other.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, other.Header.Get("Access-Control-Allow-Credentials"))
}

func TestDeviceHeader_IssuedAndEchoed(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(DeviceHeader))

	resp = env.do(t, http.MethodGet, "/api/cart", "my-phone", nil)
	assert.Equal(t, "my-phone", resp.Header.Get(DeviceHeader))
}

func TestAutocomplete(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/medications?q=an", "d", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	meds := decode[[]domain.Medication](t, resp)
	require.Len(t, meds, 2)

	resp = env.do(t, http.MethodGet, "/api/medications?q=a", "d", nil)
	assert.Empty(t, decode[[]domain.Medication](t, resp))
}

func TestGetMedication_NotFoundMessage(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/medications/9", "d", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Médicament non trouvé", decode[map[string]string](t, resp)["error"])
}

func TestSearchPharmacies_UsesReportedLocation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/location", "dev", map[string]float64{"lat": 0.39, "lon": 9.45})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/pharmacies?medication_id=1&sort=distance", "dev", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[search.SingleResult](t, resp)
	require.Len(t, res.Pharmacies, 2)
	assert.Equal(t, int64(2), res.Pharmacies[0].ID)
	assert.Equal(t, "1.1 km", res.Pharmacies[0].Distance)
	assert.Contains(t, env.backend.lastQuery, "lat=0.39")
	assert.Contains(t, env.backend.lastQuery, "medication_id=1")

	resp = env.do(t, http.MethodGet, "/api/pharmacies?medication_id=1&insurance=cnamgs", "dev", nil)
	res = decode[search.SingleResult](t, resp)
	require.Len(t, res.Pharmacies, 1)
	assert.Equal(t, int64(1), res.Pharmacies[0].ID)
}

func TestSearchPharmacies_BadSort(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/pharmacies?medication_id=1&sort=alpha", "dev", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMultiSearch(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/search/multi", "dev", multiSearchRequest{MedicationIDs: []int64{1, 2}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[search.MultiResult](t, resp)
	require.Len(t, res.Pharmacies, 2)
	assert.Equal(t, int64(2), res.Pharmacies[0].ID)
	assert.Equal(t, "complete", string(res.Pharmacies[0].Availability.Status))

	resp = env.do(t, http.MethodPost, "/api/search/multi", "dev", multiSearchRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Veuillez sélectionner au moins un médicament", decode[map[string]string](t, resp)["error"])
}

func TestLocation_PermissionDenied(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/location", "dev", map[string]string{"error": "permission_denied"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, geo.MsgPermissionDenied, decode[map[string]string](t, resp)["error"])

	resp = env.do(t, http.MethodGet, "/api/location", "dev", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCartAndCheckout(t *testing.T) {
	env := newTestEnv(t)
	item := domain.CartItem{MedicationID: 1, MedicationName: "Paracétamol", Price: "5000", PharmacyID: 1, PharmacyName: "Pharmacie A"}

	resp := env.do(t, http.MethodPost, "/api/cart/items", "dev", item)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/cart/items", "dev", item)
	body := decode[cartResponse](t, resp)
	assert.Equal(t, int64(2), body.Count)
	assert.Equal(t, "10 000 FCFA", body.TotalFormatted)
	require.NotNil(t, body.Notice)
	assert.Equal(t, cart.ChangeIncremented, body.Notice.Change)

	other := item
	other.MedicationID, other.PharmacyID = 2, 2
	resp = env.do(t, http.MethodPost, "/api/cart/items", "dev", other)
	body = decode[cartResponse](t, resp)
	assert.Equal(t, cart.ChangeReset, body.Notice.Change)
	require.Len(t, body.Items, 1)

	resp = env.do(t, http.MethodPut, "/api/cart/items/2", "dev", map[string]int64{"quantity": 3})
	body = decode[cartResponse](t, resp)
	assert.Equal(t, int64(3), body.Count)

	resp = env.do(t, http.MethodPost, "/api/orders", "dev", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	receipt := decode[checkout.Receipt](t, resp)
	require.NotNil(t, receipt.Confirmation.ID)
	assert.Equal(t, int64(77), *receipt.Confirmation.ID)
	require.Len(t, env.backend.orders, 1)
	assert.Equal(t, int64(2), env.backend.orders[0].PharmacyID)

	resp = env.do(t, http.MethodGet, "/api/cart", "dev", nil)
	assert.Empty(t, decode[cartResponse](t, resp).Items)

	resp = env.do(t, http.MethodGet, "/api/orders", "dev", nil)
	assert.Len(t, decode[[]domain.OrderRecord](t, resp), 1)

	resp = env.do(t, http.MethodPost, "/api/orders", "dev", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, checkout.MsgEmptyCart, decode[map[string]string](t, resp)["error"])
}

func TestCart_InvalidItem(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/cart/items", "dev", domain.CartItem{MedicationName: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScanPrescription(t *testing.T) {
	env := newTestEnv(t)
	upload := func(content []byte) *http.Response {
		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		part, err := form.CreateFormFile("image", "ordonnance.png")
		require.NoError(t, err)
		_, _ = part.Write(content)
		require.NoError(t, form.Close())
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/prescriptions/scan", &buf)
		require.NoError(t, err)
		req.Header.Set("Content-Type", form.FormDataContentType())
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := upload([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Paracétamol 500mg", decode[domain.ScanResult](t, resp).TextDetected)

	resp = upload([]byte("pas une image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, prescription.MsgNotAnImage, decode[map[string]string](t, resp)["error"])
}

func TestExtractPrescription(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/prescriptions/extract", "dev", map[string]string{"text": "Paracétamol"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[domain.ScanResult](t, resp)
	assert.Equal(t, []int64{1}, res.MedicationIDs)

	resp = env.do(t, http.MethodPost, "/api/prescriptions/extract", "dev", map[string]string{"text": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "admin@pharmfinder.test", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_RequiresToken(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/admin/overview", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/admin/overview", "", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_OverviewAndAddStock(t *testing.T) {
	env := newTestEnv(t)
	auth := "Bearer " + env.token(t)

	resp := env.do(t, http.MethodGet, "/admin/overview?category=Antalgique", "", nil, "Authorization", auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ov := decode[admin.Overview](t, resp)
	require.Len(t, ov.Pharmacies, 2)
	assert.Len(t, ov.Pharmacies[0].Stocks, 1)
	assert.Empty(t, ov.Pharmacies[1].Stocks)
	assert.Len(t, ov.Medications, 1)
	assert.Equal(t, []string{"Antalgique", "Antibiotique"}, ov.Categories)

	resp = env.do(t, http.MethodPost, "/admin/pharmacies/1/stocks", "", addStockRequest{MedicationID: 1, Quantity: 6}, "Authorization", auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, env.backend.stockPuts, 1)
	assert.Equal(t, int64(10), env.backend.stockPuts[0].Stock)
	assert.Equal(t, int64(600), env.backend.stockPuts[0].PharmacyPrice)
}

func TestAdmin_ImportRejectsHeaderlessCSV(t *testing.T) {
	env := newTestEnv(t)
	auth := "Bearer " + env.token(t)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/admin/medications/import", strings.NewReader("prix\n100\n"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", auth)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
