// README: End-to-end handler tests over the in-memory stack: auth,
// ride creation, bid negotiation, and the error-to-status mapping.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"savari/internal/dispatch"
	savarihttp "savari/internal/http"
	"savari/internal/infra"
	"savari/internal/modules/bidding"
	"savari/internal/modules/geo"
	"savari/internal/modules/matching"
	"savari/internal/modules/pricing"
	"savari/internal/modules/ride"
)

type stubVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

type staticRates struct{}

func (staticRates) RateFor(ctx context.Context, vehicleType string) (pricing.Rate, error) {
	return pricing.DefaultRate(vehicleType), nil
}

func (staticRates) ActiveSurge(ctx context.Context) (float64, error) { return 1.0, nil }

func buildRouter(t *testing.T, verifier infra.TokenVerifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	rideStore := ride.NewMemoryStore()
	bidStore := bidding.NewMemoryStore(rideStore)
	index := geo.NewMemoryIndex()
	fares := pricing.NewService(staticRates{}, log)
	rides := ride.NewService(rideStore, fares, geo.NewDirectory(index), nil, nil, log)
	bids := bidding.NewService(bidStore, rideStore, bidding.Config{}, log)
	match := matching.NewService(index, rides, fares, nil, nil, matching.Config{}, log)

	return savarihttp.NewRouter(savarihttp.RouterDeps{
		Rides:    rides,
		Bids:     bids,
		Matching: match,
		Pricing:  fares,
		Index:    index,
		Registry: dispatch.NewWSRegistry(log),
		Tokens:   dispatch.NewTokenRegistry(),
		Verifier: verifier,
		Log:      log,
	})
}

func doJSON(r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func asRider(id string) map[string]string {
	return map[string]string{"X-User-ID": id, "X-User-Role": "rider"}
}

func asDriver(id string) map[string]string {
	return map[string]string{"X-User-ID": id, "X-User-Role": "driver"}
}

var rideBody = map[string]any{
	"pickup":       map[string]any{"lat": 24.8607, "lng": 67.0011, "address": "Saddar"},
	"dropoff":      map[string]any{"lat": 24.9200, "lng": 67.0822, "address": "Gulshan"},
	"vehicle_type": "car",
}

func TestCreateRideUnauthenticated(t *testing.T) {
	r := buildRouter(t, &stubVerifier{err: errors.New("bad token")})
	w := doJSON(r, http.MethodPost, "/api/rides", rideBody, map[string]string{"Authorization": "Bearer nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
}

func TestCreateRideMissingIdentity(t *testing.T) {
	r := buildRouter(t, nil)
	w := doJSON(r, http.MethodPost, "/api/rides", rideBody, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
}

func TestCreateAndFetchRide(t *testing.T) {
	r := buildRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/api/rides", rideBody, asRider("rider-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("create code = %d body = %s", w.Code, w.Body.String())
	}
	var created struct {
		ID     string `json:"ID"`
		Status string `json:"Status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != string(ride.StatusSearching) {
		t.Fatalf("status = %s, want searching", created.Status)
	}

	w = doJSON(r, http.MethodGet, "/api/rides/"+created.ID, nil, asRider("rider-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("get code = %d", w.Code)
	}
}

func TestEstimateEndpoint(t *testing.T) {
	r := buildRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/api/estimate", map[string]any{
		"pickup_lat": 24.8607, "pickup_lng": 67.0011,
		"dropoff_lat": 24.9200, "dropoff_lng": 67.0822,
		"vehicle_type": "rickshaw",
	}, asRider("rider-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", w.Code, w.Body.String())
	}
	var b pricing.Breakdown
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Total <= 0 || b.Total%10 != 0 {
		t.Fatalf("total = %d, want positive multiple of 10", b.Total)
	}
}

func TestEstimateBadCoordinates(t *testing.T) {
	r := buildRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/api/estimate", map[string]any{
		"pickup_lat": 999.0, "pickup_lng": 67.0,
		"dropoff_lat": 24.9, "dropoff_lng": 67.1,
		"vehicle_type": "car",
	}, asRider("rider-1"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", w.Code)
	}
}

func TestBidNegotiationFlow(t *testing.T) {
	r := buildRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/api/rides", rideBody, asRider("rider-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("create ride: %d", w.Code)
	}
	var created struct {
		ID string `json:"ID"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	// driver bids
	w = doJSON(r, http.MethodPost, fmt.Sprintf("/api/rides/%s/bids", created.ID),
		map[string]any{"amount": 400, "eta_minutes": 5}, asDriver("driver-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("place bid: %d body = %s", w.Code, w.Body.String())
	}
	var bid struct {
		ID string `json:"ID"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &bid)

	// a stranger cannot accept it
	w = doJSON(r, http.MethodPost, "/api/bids/"+bid.ID+"/accept", nil, asRider("rider-2"))
	if w.Code != http.StatusForbidden {
		t.Fatalf("stranger accept: %d, want 403", w.Code)
	}

	// the rider accepts
	w = doJSON(r, http.MethodPost, "/api/bids/"+bid.ID+"/accept", nil, asRider("rider-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("accept: %d body = %s", w.Code, w.Body.String())
	}

	// the ride is assigned; a second accept conflicts
	w = doJSON(r, http.MethodPost, "/api/bids/"+bid.ID+"/accept", nil, asRider("rider-1"))
	if w.Code != http.StatusConflict {
		t.Fatalf("double accept: %d, want 409", w.Code)
	}

	w = doJSON(r, http.MethodGet, "/api/rides/"+created.ID, nil, asRider("rider-1"))
	var got struct {
		Status   string  `json:"Status"`
		DriverID *string `json:"DriverID"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Status != string(ride.StatusAccepted) || got.DriverID == nil || *got.DriverID != "driver-1" {
		t.Fatalf("ride after accept: %+v", got)
	}
}

func TestUpsaleEndpoint(t *testing.T) {
	r := buildRouter(t, nil)

	w := doJSON(r, http.MethodPost, "/api/rides", rideBody, asRider("rider-1"))
	var created struct {
		ID string `json:"ID"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	w = doJSON(r, http.MethodPost, "/api/rides/"+created.ID+"/upsale",
		map[string]any{"percentage": 20}, asRider("rider-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("upsale: %d body = %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodPost, "/api/rides/"+created.ID+"/upsale",
		map[string]any{"percentage": 25}, asRider("rider-1"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid tier: %d, want 400", w.Code)
	}
}

func TestDriverPresenceAndDiscovery(t *testing.T) {
	r := buildRouter(t, nil)

	w := doJSON(r, http.MethodPut, "/api/drivers/location", map[string]any{
		"lat": 24.8650, "lng": 67.0050, "vehicle_type": "car", "seats": 4,
		"online": true, "approved": true,
	}, asDriver("driver-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("presence: %d body = %s", w.Code, w.Body.String())
	}

	w = doJSON(r, http.MethodGet,
		"/api/drivers/nearby?pickup_lat=24.8607&pickup_lng=67.0011&dropoff_lat=24.9200&dropoff_lng=67.0822&vehicle_type=car",
		nil, asRider("rider-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("nearby: %d body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Drivers []struct {
			DriverID string `json:"driver_id"`
		} `json:"drivers"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Drivers) != 1 || resp.Drivers[0].DriverID != "driver-1" {
		t.Fatalf("drivers = %+v", resp.Drivers)
	}

	// direct booking against the discovered driver
	body := map[string]any{}
	for k, v := range rideBody {
		body[k] = v
	}
	body["driver_id"] = "driver-1"
	w = doJSON(r, http.MethodPost, "/api/rides/book", body, asRider("rider-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("book: %d body = %s", w.Code, w.Body.String())
	}

	// offline driver can no longer be booked
	w = doJSON(r, http.MethodDelete, "/api/drivers/location", nil, asDriver("driver-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("go offline: %d", w.Code)
	}
	w = doJSON(r, http.MethodPost, "/api/rides/book", body, asRider("rider-2"))
	if w.Code != http.StatusConflict {
		t.Fatalf("book offline driver: %d, want 409", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := buildRouter(t, nil)
	for _, path := range []string{"/health", "/metrics"} {
		w := doJSON(r, http.MethodGet, path, nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, w.Code)
		}
	}
}
