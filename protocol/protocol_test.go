package protocol

import (
	"encoding/json"
	"testing"
	"time"
)

var (
	terminal = Address{Role: RoleTerminal, Node: "fpi.term-4010", Machine: "10"}
	planner  = Address{Role: RolePlanner, Node: "fpi.planner"}
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(TypeLotStart, terminal, planner, &LotStart{
		OrderID:   "N20023990",
		Machine:   "4010",
		LotNumber: "40123456789",
	})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if env.Version != Version {
		t.Errorf("version = %d, want %d", env.Version, Version)
	}
	if env.Src != terminal {
		t.Errorf("src = %+v, want %+v", env.Src, terminal)
	}
	if env.ID == "" {
		t.Error("ID should not be empty")
	}

	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != TypeLotStart || decoded.ID != env.ID {
		t.Errorf("decoded = %s/%s, want %s/%s", decoded.Type, decoded.ID, TypeLotStart, env.ID)
	}
	var p LotStart
	if err := decoded.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if p.LotNumber != "40123456789" || p.OrderID != "N20023990" {
		t.Errorf("payload = %+v", p)
	}
}

func TestNewReply(t *testing.T) {
	reply, err := NewReply(TypeCommandAck, planner, terminal, "orig-msg-id", &CommandAck{Command: TypeLotStart, OK: true})
	if err != nil {
		t.Fatalf("NewReply: %v", err)
	}
	if reply.CorID != "orig-msg-id" {
		t.Errorf("cor = %q, want %q", reply.CorID, "orig-msg-id")
	}
	if reply.Dst != terminal {
		t.Errorf("dst = %+v, want %+v", reply.Dst, terminal)
	}
}

func TestExpiry(t *testing.T) {
	env := &Envelope{ExpiresAt: time.Now().UTC().Add(-1 * time.Minute)}
	if !IsExpired(env) {
		t.Error("expected expired envelope to be detected")
	}
	env.ExpiresAt = time.Now().UTC().Add(10 * time.Minute)
	if IsExpired(env) {
		t.Error("expected future-expiry envelope to not be expired")
	}
	env.ExpiresAt = time.Time{}
	if IsExpired(env) {
		t.Error("expected zero-expiry envelope to not be expired")
	}
}

func TestDefaultTTLFor(t *testing.T) {
	if ttl := DefaultTTLFor(TypeTerminalHeartbeat); ttl != 90*time.Second {
		t.Errorf("heartbeat TTL = %v, want 90s", ttl)
	}
	if ttl := DefaultTTLFor(TypeLotStart); ttl != 5*time.Minute {
		t.Errorf("lot start TTL = %v, want 5m", ttl)
	}
	if ttl := DefaultTTLFor(TypeImportCompleted); ttl != 60*time.Minute {
		t.Errorf("import TTL = %v, want 60m", ttl)
	}
	if ttl := DefaultTTLFor("unknown.type"); ttl != FallbackTTL {
		t.Errorf("unknown TTL = %v, want %v", ttl, FallbackTTL)
	}
}

// testHandler records which methods were called.
type testHandler struct {
	NoOpHandler
	started  []LotStart
	advanced []LotAdvance
	released []OccupancyRelease
}

func (h *testHandler) HandleLotStart(_ *Envelope, p *LotStart)     { h.started = append(h.started, *p) }
func (h *testHandler) HandleLotAdvance(_ *Envelope, p *LotAdvance) { h.advanced = append(h.advanced, *p) }
func (h *testHandler) HandleOccupancyRelease(_ *Envelope, p *OccupancyRelease) {
	h.released = append(h.released, *p)
}

func encode(t *testing.T, msgType string, payload any) []byte {
	t.Helper()
	env, err := NewEnvelope(msgType, terminal, planner, payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	data, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestIngestorDispatch(t *testing.T) {
	h := &testHandler{}
	ing := NewIngestor(h, nil)

	ing.HandleRaw(encode(t, TypeLotStart, &LotStart{OrderID: "N1", LotNumber: "1"}))
	ing.HandleRaw(encode(t, TypeLotAdvance, &LotAdvance{LotNumber: "1", Step: "Lossen"}))
	ing.HandleRaw(encode(t, TypeOccupancyRelease, &OccupancyRelease{Machine: "10", Operator: "Jan"}))
	ing.HandleRaw(encode(t, TypeLotFinish, &LotFinish{LotNumber: "1"}))

	if len(h.started) != 1 || h.started[0].OrderID != "N1" {
		t.Errorf("started = %+v", h.started)
	}
	if len(h.advanced) != 1 || h.advanced[0].Step != "Lossen" {
		t.Errorf("advanced = %+v", h.advanced)
	}
	if len(h.released) != 1 || h.released[0].Operator != "Jan" {
		t.Errorf("released = %+v", h.released)
	}
}

func TestIngestorIgnoresGarbage(t *testing.T) {
	h := &testHandler{}
	ing := NewIngestor(h, nil)
	ing.HandleRaw([]byte("not json"))
	ing.HandleRaw([]byte(`{"type":"lot.start","p":"not an object"}`))
	ing.HandleRaw(encode(t, "unknown.type", map[string]string{}))
	if len(h.started) != 0 {
		t.Errorf("started = %+v, want none", h.started)
	}
}

func TestIngestorFilter(t *testing.T) {
	h := &testHandler{}
	ing := NewIngestor(h, func(hdr *RawHeader) bool { return hdr.Dst.Role == RolePlanner && hdr.Src.Node != "fpi.term-4010" })
	ing.HandleRaw(encode(t, TypeLotStart, &LotStart{OrderID: "N1"}))
	if len(h.started) != 0 {
		t.Error("expected handler to NOT be called when filter rejects")
	}
}

func TestIngestorDropsExpired(t *testing.T) {
	h := &testHandler{}
	ing := NewIngestor(h, nil)

	env, _ := NewEnvelope(TypeLotStart, terminal, planner, &LotStart{OrderID: "N1"})
	env.ExpiresAt = time.Now().UTC().Add(-1 * time.Minute)
	data, _ := env.Encode()
	ing.HandleRaw(data)

	if len(h.started) != 0 {
		t.Error("expected handler to NOT be called for expired message")
	}
}

func TestWireFormatKeys(t *testing.T) {
	data := encode(t, TypeTerminalHeartbeat, &TerminalHeartbeat{StationID: "term-4010", Uptime: 60})

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"v", "type", "id", "src", "dst", "ts", "exp", "p"} {
		if _, ok := m[k]; !ok {
			t.Errorf("expected key %q in wire format", k)
		}
	}
	for _, k := range []string{"version", "payload", "timestamp", "expires_at", "source", "destination"} {
		if _, ok := m[k]; ok {
			t.Errorf("unexpected long key %q in wire format", k)
		}
	}
}

func TestIngestorDropsNewerVersion(t *testing.T) {
	h := &testHandler{}
	ing := NewIngestor(h, nil)

	env, _ := NewEnvelope(TypeLotStart, terminal, planner, &LotStart{OrderID: "N1"})
	env.Version = Version + 1
	data, _ := env.Encode()
	ing.HandleRaw(data)
	ing.HandleRaw([]byte("not json"))
	ing.HandleRaw(encode(t, TypeLotStart, &LotStart{OrderID: "N2"}))

	if len(h.started) != 1 || h.started[0].OrderID != "N2" {
		t.Errorf("started = %+v, want only N2", h.started)
	}
	if recv, dropped := ing.Stats(); recv != 3 || dropped != 2 {
		t.Errorf("stats = %d received, %d dropped; want 3, 2", recv, dropped)
	}
}

func TestDecode(t *testing.T) {
	if _, err := Decode([]byte(`{"v":1,"id":"x"}`)); err != ErrMissingType {
		t.Errorf("err = %v, want ErrMissingType", err)
	}
	env, err := Decode(encode(t, TypeLotFinish, &LotFinish{LotNumber: "7"}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var p LotFinish
	if err := env.DecodePayload(&p); err != nil || p.LotNumber != "7" {
		t.Errorf("payload = %+v, err %v", p, err)
	}
}

func TestNewEnvelopeTTLZeroNeverExpires(t *testing.T) {
	env, err := NewEnvelopeTTL(TypeImportCompleted, planner, terminal, 0, map[string]int{"rows": 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !env.ExpiresAt.IsZero() || IsExpired(env) {
		t.Errorf("expires at %v, want never", env.ExpiresAt)
	}
}
