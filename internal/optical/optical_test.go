package optical

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stocktrace/stocktrace-backend/pkg/config"
	"github.com/stocktrace/stocktrace-backend/pkg/metrics"
)

type fakeDecoder struct {
	name     string
	decodeFn func(ctx context.Context, image []byte) (*Result, error)
}

func (d *fakeDecoder) Name() string {
	return d.name
}

func (d *fakeDecoder) Decode(ctx context.Context, image []byte) (*Result, error) {
	return d.decodeFn(ctx, image)
}

func fixedDecoder(name, content string, confidence float64) *fakeDecoder {
	return &fakeDecoder{
		name: name,
		decodeFn: func(context.Context, []byte) (*Result, error) {
			return &Result{Content: content, Confidence: confidence}, nil
		},
	}
}

func missDecoder(name string) *fakeDecoder {
	return &fakeDecoder{
		name: name,
		decodeFn: func(context.Context, []byte) (*Result, error) {
			return nil, nil
		},
	}
}

func TestEnsembleScanPicksHighestConfidence(t *testing.T) {
	ensemble := NewEnsemble([]Decoder{
		fixedDecoder("zxing", "PROD-000042", 0.95),
		fixedDecoder("api", "PROD-000099", 0.99),
	}, nil, nil)

	result, err := ensemble.Scan(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
	if result.Content != "PROD-000099" {
		t.Fatalf("expected highest-confidence content, got %q", result.Content)
	}
	if result.Decoder != "api" {
		t.Fatalf("expected winning decoder name, got %q", result.Decoder)
	}
}

func TestEnsembleScanTieKeepsEarlierDecoder(t *testing.T) {
	ensemble := NewEnsemble([]Decoder{
		fixedDecoder("zxing", "FIRST", 0.90),
		fixedDecoder("quirc", "SECOND", 0.90),
	}, nil, nil)

	result, err := ensemble.Scan(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result == nil || result.Content != "FIRST" {
		t.Fatalf("expected the earlier decoder to win the tie, got %+v", result)
	}
	if result.Decoder != "zxing" {
		t.Fatalf("expected zxing to win, got %q", result.Decoder)
	}
}

func TestEnsembleScanAllMiss(t *testing.T) {
	ensemble := NewEnsemble([]Decoder{
		missDecoder("zxing"),
		missDecoder("quirc"),
	}, nil, nil)

	result, err := ensemble.Scan(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected no result, got %+v", result)
	}
}

func TestEnsembleScanSkipsFailingDecoder(t *testing.T) {
	ensemble := NewEnsemble([]Decoder{
		&fakeDecoder{
			name: "zxing",
			decodeFn: func(context.Context, []byte) (*Result, error) {
				return nil, fmt.Errorf("binary crashed")
			},
		},
		fixedDecoder("quirc", "PROD-000007", 0.90),
	}, nil, nil)

	result, err := ensemble.Scan(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result == nil || result.Content != "PROD-000007" {
		t.Fatalf("expected the surviving decoder's result, got %+v", result)
	}
}

func TestEnsembleScanIgnoresBlankContent(t *testing.T) {
	ensemble := NewEnsemble([]Decoder{
		fixedDecoder("zxing", "   ", 0.95),
	}, nil, nil)

	result, err := ensemble.Scan(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected blank content to count as a miss, got %+v", result)
	}
}

func TestEnsembleScanRequiresImage(t *testing.T) {
	ensemble := NewEnsemble([]Decoder{missDecoder("zxing")}, nil, nil)

	if _, err := ensemble.Scan(context.Background(), nil); err == nil {
		t.Fatal("expected an error for a missing image")
	}
}

func TestEnsembleScanRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	movement := metrics.NewMovementMetrics(reg)
	ensemble := NewEnsemble([]Decoder{
		fixedDecoder("zxing", "PROD-000042", 0.95),
		missDecoder("quirc"),
		&fakeDecoder{
			name: "api",
			decodeFn: func(context.Context, []byte) (*Result, error) {
				return nil, fmt.Errorf("gateway timeout")
			},
		},
	}, nil, movement)

	if _, err := ensemble.Scan(context.Background(), []byte("png")); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if got := scanCount(t, reg, "zxing", "hit"); got != 1 {
		t.Fatalf("expected one zxing hit, got %v", got)
	}
	if got := scanCount(t, reg, "quirc", "miss"); got != 1 {
		t.Fatalf("expected one quirc miss, got %v", got)
	}
	if got := scanCount(t, reg, "api", "error"); got != 1 {
		t.Fatalf("expected one api error, got %v", got)
	}
}

func scanCount(t *testing.T, reg *prometheus.Registry, decoder, outcome string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "barcode_scans" {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, label := range m.GetLabel() {
				if label.GetName() == "decoder" && label.GetValue() == decoder {
					matched++
				}
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					matched++
				}
			}
			if matched == 2 {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestCommandDecoderEmptyCommandIsMiss(t *testing.T) {
	decoder := NewCommandDecoder("zxing", "", 0.95)

	result, err := decoder.Decode(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected a miss for an unconfigured command, got %+v", result)
	}
}

func TestHTTPAPIDecoderReadsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "image/png" {
			t.Errorf("expected image/png content type, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "PROD-000042"})
	}))
	defer server.Close()

	decoder := NewHTTPAPIDecoder(server.URL, 0.85, time.Second)
	result, err := decoder.Decode(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if result == nil || result.Content != "PROD-000042" {
		t.Fatalf("expected decoded text, got %+v", result)
	}
	if result.Confidence != 0.85 {
		t.Fatalf("expected configured confidence, got %v", result.Confidence)
	}
}

func TestHTTPAPIDecoderNotFoundIsMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	decoder := NewHTTPAPIDecoder(server.URL, 0.85, time.Second)
	result, err := decoder.Decode(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected a miss on 404, got %+v", result)
	}
}

func TestHTTPAPIDecoderEmptyEndpointIsMiss(t *testing.T) {
	decoder := NewHTTPAPIDecoder("", 0.85, time.Second)

	result, err := decoder.Decode(context.Background(), []byte("png"))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected a miss for an unconfigured endpoint, got %+v", result)
	}
}

func TestFromConfigBuildsDecoderChain(t *testing.T) {
	decoders := FromConfig(config.ScanConfig{
		ZxingCommand:    "zxing",
		ZxingConfidence: 0.95,
		QuircCommand:    "quirc",
		QuircConfidence: 0.90,
		APIEndpoint:     "http://decode.internal/scan",
		APIConfidence:   0.85,
		Timeout:         5 * time.Second,
	})

	if len(decoders) != 3 {
		t.Fatalf("expected three decoders, got %d", len(decoders))
	}
	names := []string{"zxing", "quirc", "api"}
	for i, want := range names {
		if got := decoders[i].Name(); got != want {
			t.Fatalf("decoder %d: expected %q, got %q", i, want, got)
		}
	}
}
