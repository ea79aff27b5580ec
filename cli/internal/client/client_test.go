package client

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/metage/metage/pkg/estimatorv1"
	"github.com/metage/metage/pkg/metabolic"
	"github.com/metage/metage/pkg/types"
)

// mockServer implements estimatorv1.EstimatorServer for testing.
type mockServer struct {
	mu       sync.Mutex
	calls    int
	failN    int // fail the first N calls with failCode
	failCode codes.Code
	keys     []string // x-api-key metadata seen per call
}

func (m *mockServer) Estimate(ctx context.Context, req *types.EstimateRequest) (*estimatorv1.EstimateReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	md, _ := metadata.FromIncomingContext(ctx)
	m.keys = append(m.keys, md.Get("x-api-key")...)

	if m.failN > 0 {
		m.failN--
		return nil, status.Error(m.failCode, "mock failure")
	}
	res, err := metabolic.Estimate(req.Form().Input())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, metabolic.InvalidInputMessage)
	}
	reply := types.NewEstimateResponse(res)
	return &reply, nil
}

func (m *mockServer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// startTestServer starts an in-process gRPC server and returns a Client
// connected to it over a buffered pipe.
func startTestServer(t *testing.T, srv *mockServer, opts Options) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.ForceServerCodec(estimatorv1.Codec{}))
	estimatorv1.Register(gs, srv)
	go gs.Serve(lis) //nolint:errcheck

	conn, err := grpc.Dial("bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	) //nolint:staticcheck
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		gs.Stop()
		lis.Close()
	})
	return New(conn, opts)
}

var scenario = &types.EstimateRequest{
	Age: "30", Sex: "female", HeightCm: "175", WeightKg: "70", RestingHR: "60", Activity: "moderate",
}

func TestEstimate_SendsAPIKey(t *testing.T) {
	srv := &mockServer{}
	c := startTestServer(t, srv, Options{APIKey: "k3y"})

	reply, err := c.Estimate(context.Background(), scenario)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if reply.MetabolicAge != 25 || reply.Display.AgeDelta != "-5" {
		t.Errorf("reply: got age=%d delta=%s, want 25/-5", reply.MetabolicAge, reply.Display.AgeDelta)
	}
	if len(srv.keys) != 1 || srv.keys[0] != "k3y" {
		t.Errorf("api key metadata: got %v, want [k3y]", srv.keys)
	}
}

func TestEstimate_NoKeyNoMetadata(t *testing.T) {
	srv := &mockServer{}
	c := startTestServer(t, srv, Options{})

	if _, err := c.Estimate(context.Background(), scenario); err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if len(srv.keys) != 0 {
		t.Errorf("api key metadata: got %v, want none", srv.keys)
	}
}

func TestEstimate_RetriesTransient(t *testing.T) {
	srv := &mockServer{failN: 2, failCode: codes.Unavailable}
	c := startTestServer(t, srv, Options{Attempts: 3})

	reply, err := c.Estimate(context.Background(), scenario)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if reply.MetabolicAge != 25 {
		t.Errorf("MetabolicAge: got %d, want 25", reply.MetabolicAge)
	}
	if n := srv.callCount(); n != 3 {
		t.Errorf("calls: got %d, want 3", n)
	}
}

func TestEstimate_GivesUpAfterAttempts(t *testing.T) {
	srv := &mockServer{failN: 5, failCode: codes.Unavailable}
	c := startTestServer(t, srv, Options{Attempts: 2})

	_, err := c.Estimate(context.Background(), scenario)
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("err: got %v, want Unavailable", err)
	}
	if n := srv.callCount(); n != 2 {
		t.Errorf("calls: got %d, want 2", n)
	}
}

func TestEstimate_PermanentErrorsNotRetried(t *testing.T) {
	for _, code := range []codes.Code{codes.InvalidArgument, codes.Unauthenticated} {
		srv := &mockServer{failN: 1, failCode: code}
		c := startTestServer(t, srv, Options{Attempts: 3})

		_, err := c.Estimate(context.Background(), scenario)
		if status.Code(err) != code {
			t.Errorf("%v: err = %v", code, err)
		}
		if n := srv.callCount(); n != 1 {
			t.Errorf("%v: calls = %d, want 1", code, n)
		}
	}
}

func TestEstimate_InvalidInputMessage(t *testing.T) {
	c := startTestServer(t, &mockServer{}, Options{})

	_, err := c.Estimate(context.Background(), &types.EstimateRequest{Age: "30", HeightCm: "175", WeightKg: "70"})
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.InvalidArgument {
		t.Fatalf("err: got %v, want InvalidArgument", err)
	}
	if st.Message() != metabolic.InvalidInputMessage {
		t.Errorf("message: got %q", st.Message())
	}
}

func TestEstimate_ContextCancelledDuringBackoff(t *testing.T) {
	srv := &mockServer{failN: 10, failCode: codes.Unavailable}
	c := startTestServer(t, srv, Options{Attempts: 10})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.Estimate(ctx, scenario); err == nil {
		t.Fatal("expected error after context cancellation")
	}
	if n := srv.callCount(); n >= 10 {
		t.Errorf("calls: got %d, expected retries to stop early", n)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := newBackoff()
	prev := time.Duration(0)
	for i := 0; i < 10; i++ {
		d := b.next()
		if d > backoffMax+backoffMax/4 {
			t.Fatalf("step %d: %v exceeds cap with jitter", i, d)
		}
		if i < 3 && d < prev/2 {
			t.Errorf("step %d: %v shrank from %v", i, d, prev)
		}
		prev = d
	}
	if b.current != backoffMax {
		t.Errorf("current: got %v, want %v", b.current, backoffMax)
	}
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.Header != "x-api-key" || o.Timeout != defaultTimeout || o.Attempts != defaultAttempts {
		t.Errorf("defaults: got %+v", o)
	}
}

func TestTransportCreds_BadCAFile(t *testing.T) {
	if _, err := transportCreds("/nonexistent/ca.pem"); err == nil {
		t.Fatal("expected error for missing CA file")
	}
}
