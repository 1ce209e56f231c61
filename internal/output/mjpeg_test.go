package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"
	"time"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestMJPEGOutput_Lifecycle(t *testing.T) {
	m := NewMJPEGOutput(Config{})
	if err := m.WriteFrame(solid(4, 4, color.RGBA{A: 255})); err == nil {
		t.Fatalf("frame accepted before Start")
	}
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(); err == nil {
		t.Fatalf("second Start accepted")
	}
	if err := m.WriteFrame(solid(4, 4, color.RGBA{A: 255})); err != nil {
		t.Fatal(err)
	}
	if s := m.Stats(); !s.Running || s.Frames != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if m.IsRunning() {
		t.Fatalf("still running after Stop")
	}
}

func TestMJPEGOutput_NewClientGetsLatestFrame(t *testing.T) {
	m := NewMJPEGOutput(Config{Quality: 95})
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()
	if err := m.WriteFrame(solid(16, 8, color.RGBA{R: 200, A: 255})); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(m.HTTPHandler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	boundary, err := r.ReadString('\n')
	if err != nil || boundary != "--frame\r\n" {
		t.Fatalf("boundary = %q, %v", boundary, err)
	}
	header, err := textproto.NewReader(r).ReadMIMEHeader()
	if err != nil {
		t.Fatal(err)
	}
	n, _ := strconv.Atoi(header.Get("Content-Length"))
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("frame is not a jpeg: %v", err)
	}
	if img.Bounds().Size() != image.Pt(16, 8) {
		t.Fatalf("frame size = %v", img.Bounds().Size())
	}
	if m.Clients() != 1 {
		t.Fatalf("clients = %d", m.Clients())
	}
}

func TestMJPEGOutput_SnapshotAndStats(t *testing.T) {
	m := NewMJPEGOutput(Config{})
	m.Start()
	defer m.Stop()

	rec := httptest.NewRecorder()
	m.SnapshotHandler()(rec, httptest.NewRequest(http.MethodGet, "/stream/latest.jpg", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("snapshot before any frame = %d", rec.Code)
	}

	transparent := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	if err := m.WriteFrame(transparent); err != nil {
		t.Fatal(err)
	}
	rec = httptest.NewRecorder()
	m.SnapshotHandler()(rec, httptest.NewRequest(http.MethodGet, "/stream/latest.jpg", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("snapshot = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	m.StatsHandler()(rec, httptest.NewRequest(http.MethodGet, "/stream/stats", nil))
	var s Stats
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.Frames != 1 || !s.Running {
		t.Fatalf("stats = %+v", s)
	}
}

func TestMJPEGOutput_StoppedStreamRefusesClients(t *testing.T) {
	m := NewMJPEGOutput(Config{})
	rec := httptest.NewRecorder()
	m.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
