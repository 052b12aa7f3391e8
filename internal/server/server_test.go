// ABOUTME: Tests for the soundboard server HTTP/WebSocket surface
// ABOUTME: Exercises toggling, error replies, listing, and uploads end to end
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pheineke/soundboard/internal/audio"
	"github.com/pheineke/soundboard/internal/hub"
	"github.com/pheineke/soundboard/internal/playback"
	"github.com/pheineke/soundboard/internal/protocol"
	"github.com/pheineke/soundboard/internal/registry"
)

type nopDevice struct{}

type nopHandle struct{}

func (nopDevice) Start(pcm []byte, onDone func()) (playback.Handle, error) {
	return nopHandle{}, nil
}

func (nopHandle) Stop() {}

// fakeDecode succeeds for everything except files named bad.* (the
// stored name may carry a timestamp prefix).
func fakeDecode(path string) ([]byte, error) {
	if strings.Contains(filepath.Base(path), "bad.") {
		return nil, &audio.DecodeError{Path: path, Err: fmt.Errorf("corrupt stream")}
	}
	return []byte{0, 0, 0, 0}, nil
}

// newTestServer builds a server over fakes with the given pre-existing
// upload files and scans them in.
func newTestServer(t *testing.T, files ...string) (*httptest.Server, *Server) {
	t.Helper()

	uploadDir := t.TempDir()
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(uploadDir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	sounds := registry.New(fakeDecode)
	pool := playback.NewPool(nopDevice{}, 8)
	srv := New(Config{Name: "test-board", UploadDir: uploadDir}, sounds, pool, hub.New(), fakeDecode)

	if _, err := srv.ingest.ScanDir(); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv
}

func wsDial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return msg
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Errorf("expected no message, got %s", data)
	}
}

func sendToggle(t *testing.T, conn *websocket.Conn, id string) {
	t.Helper()

	msg := protocol.Message{Action: protocol.ActionToggleSound, ID: id}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestToggleBroadcastsToAllSessions(t *testing.T) {
	ts, _ := newTestServer(t, "horn.mp3")

	c1 := wsDial(t, ts)
	c2 := wsDial(t, ts)

	sendToggle(t, c1, "horn.mp3")

	for i, c := range []*websocket.Conn{c1, c2} {
		msg := readMessage(t, c)
		if msg.Action != protocol.ActionSoundPlayed || msg.ID != "horn.mp3" {
			t.Errorf("client %d: unexpected message %+v", i, msg)
		}
	}

	sendToggle(t, c2, "horn.mp3")

	for i, c := range []*websocket.Conn{c1, c2} {
		msg := readMessage(t, c)
		if msg.Action != protocol.ActionSoundStopped || msg.ID != "horn.mp3" {
			t.Errorf("client %d: unexpected message %+v", i, msg)
		}
	}
}

func TestToggleUnknownSoundErrorsOnlyRequester(t *testing.T) {
	ts, _ := newTestServer(t)

	c1 := wsDial(t, ts)
	c2 := wsDial(t, ts)

	sendToggle(t, c1, "does-not-exist")

	msg := readMessage(t, c1)
	if msg.Action != protocol.ActionError || msg.Message != "sound not found" {
		t.Errorf("unexpected reply %+v", msg)
	}

	expectSilence(t, c2)
}

func TestToggleDecodeErrorIsolated(t *testing.T) {
	ts, _ := newTestServer(t, "bad.mp3", "good.mp3")

	c := wsDial(t, ts)

	sendToggle(t, c, "bad.mp3")
	msg := readMessage(t, c)
	if msg.Action != protocol.ActionError || msg.Message != "failed to decode sound" {
		t.Errorf("unexpected reply %+v", msg)
	}

	// A valid sound still works afterwards.
	sendToggle(t, c, "good.mp3")
	msg = readMessage(t, c)
	if msg.Action != protocol.ActionSoundPlayed || msg.ID != "good.mp3" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestMalformedMessageErrorsRequester(t *testing.T) {
	ts, _ := newTestServer(t)

	c := wsDial(t, ts)
	if err := c.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}

	msg := readMessage(t, c)
	if msg.Action != protocol.ActionError {
		t.Errorf("expected error reply, got %+v", msg)
	}
}

func TestSoundsListing(t *testing.T) {
	ts, _ := newTestServer(t, "a.mp3", "b.wav")

	resp, err := http.Get(ts.URL + "/api/sounds")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var infos []soundInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatal(err)
	}

	if len(infos) != 2 {
		t.Fatalf("expected 2 sounds, got %d", len(infos))
	}
	if infos[0].ID != "a.mp3" || infos[0].Path != "/uploads/a.mp3" {
		t.Errorf("unexpected first entry %+v", infos[0])
	}
}

func uploadRequest(t *testing.T, url, filename string, content []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("sound", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	mw.Close()

	resp, err := http.Post(url+"/api/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUploadRegistersAndAnnounces(t *testing.T) {
	ts, srv := newTestServer(t)

	c := wsDial(t, ts)

	resp := uploadRequest(t, ts.URL, "airhorn.mp3", []byte("fake audio"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var info soundInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(info.ID, "-airhorn.mp3") || info.Name != "airhorn" {
		t.Errorf("unexpected upload reply %+v", info)
	}

	msg := readMessage(t, c)
	if msg.Action != protocol.ActionNewSound || msg.ID != info.ID || msg.Name != "airhorn" {
		t.Errorf("unexpected announcement %+v", msg)
	}

	if _, err := srv.sounds.Get(info.ID); err != nil {
		t.Errorf("uploaded sound not registered: %v", err)
	}
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadRequest(t, ts.URL, "notes.txt", []byte("text"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadRejectsUndecodable(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := uploadRequest(t, ts.URL, "bad.mp3", []byte("garbage"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}

	var reply map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if reply["error"] != "file is not a decodable audio clip" {
		t.Errorf("unexpected error message %q", reply["error"])
	}
}
