package processing

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"facecam/internal/models"
	"facecam/pkg/log"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// fakeServer answers each request with whatever handle returns. A nil
// response sends nothing.
type fakeServer struct {
	srv    *httptest.Server
	handle func(conn *websocket.Conn, req request) *response

	mu       sync.Mutex
	requests []request
}

func newFakeServer(t *testing.T, handle func(conn *websocket.Conn, req request) *response) *fakeServer {
	fs := &fakeServer{handle: handle}

	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req request
			if err := json.Unmarshal(data, &req); err != nil {
				t.Errorf("bad request frame: %v", err)
				return
			}

			fs.mu.Lock()
			fs.requests = append(fs.requests, req)
			fs.mu.Unlock()

			resp := fs.handle(conn, req)
			if resp == nil {
				continue
			}
			resp.ID = req.ID
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(fs.srv.Close)

	return fs
}

func (fs *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http") + "/ws"
}

func (fs *fakeServer) received() []request {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]request(nil), fs.requests...)
}

func startDetector(t *testing.T, url string) *RemoteDetector {
	d := NewRemoteDetector(url,
		WithRetryDelay(20*time.Millisecond),
		WithJPEGQuality(func() int { return 80 }),
		WithLogger(log.Discard()),
	)
	d.Start()
	t.Cleanup(d.Stop)
	return d
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewRemoteDetectorURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/ws", NewRemoteDetector("localhost:8080").URL())
	assert.Equal(t, "wss://infer.example.com/socket", NewRemoteDetector("wss://infer.example.com/socket").URL())
}

func TestLoadModel(t *testing.T) {
	fs := newFakeServer(t, func(_ *websocket.Conn, req request) *response {
		return &response{OK: true}
	})
	d := startDetector(t, fs.url())

	require.NoError(t, d.LoadModel(testContext(t), "tiny_face_detector", "/models"))

	reqs := fs.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, opLoadModel, reqs[0].Op)
	assert.Equal(t, "tiny_face_detector", reqs[0].Model)
	assert.Equal(t, "/models", reqs[0].URI)
	assert.NotEmpty(t, reqs[0].ID)
	assert.True(t, d.Connected())
}

func TestLoadModelRejected(t *testing.T) {
	fs := newFakeServer(t, func(_ *websocket.Conn, req request) *response {
		return &response{OK: false, Error: "weights not found"}
	})
	d := startDetector(t, fs.url())

	err := d.LoadModel(testContext(t), "age_gender", "/models")
	require.Error(t, err)
	assert.Equal(t, "detector: load_model: weights not found", err.Error())
}

func TestDetectAll(t *testing.T) {
	fs := newFakeServer(t, func(_ *websocket.Conn, req request) *response {
		var face wireFace
		face.Detection.Box = wireBox{X: 10.5, Y: 20, Width: 64.4, Height: 80.6}
		face.Detection.Score = 0.93
		face.Gender = "female"
		face.GenderProbability = 0.88
		face.Age = 27.4
		face.Landmarks = []models.Point{{X: 1, Y: 2}}
		return &response{OK: true, Faces: []wireFace{face}}
	})
	d := startDetector(t, fs.url())

	recs, err := d.DetectAll(testContext(t), image.NewRGBA(image.Rect(0, 0, 32, 24)))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, models.DetectionRecord{
		Box:               models.Box{X: 10.5, Y: 20, Width: 64.4, Height: 80.6},
		Score:             0.93,
		Gender:            models.GenderFemale,
		GenderProbability: 0.88,
		Age:               27.4,
		Landmarks:         []models.Point{{X: 1, Y: 2}},
	}, recs[0])

	reqs := fs.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, opDetect, reqs[0].Op)
	assert.Equal(t, detectStages, reqs[0].Stages)

	img, err := jpeg.Decode(bytes.NewReader(reqs[0].Image))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
}

func TestDetectAllNoFaces(t *testing.T) {
	fs := newFakeServer(t, func(_ *websocket.Conn, req request) *response {
		return &response{OK: true}
	})
	d := startDetector(t, fs.url())

	recs, err := d.DetectAll(testContext(t), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDetectAllNilImage(t *testing.T) {
	d := NewRemoteDetector("localhost:1")
	_, err := d.DetectAll(context.Background(), nil)
	assert.Error(t, err)
}

func TestResponsesMatchedByID(t *testing.T) {
	var (
		mu      sync.Mutex
		waiting []request
	)

	// Hold the first request and answer both in reverse order once the
	// second arrives. Age carries the width of the image each request sent.
	fs := newFakeServer(t, func(conn *websocket.Conn, req request) *response {
		mu.Lock()
		defer mu.Unlock()

		waiting = append(waiting, req)
		if len(waiting) < 2 {
			return nil
		}

		for i := len(waiting) - 1; i >= 0; i-- {
			r := waiting[i]
			img, err := jpeg.Decode(bytes.NewReader(r.Image))
			if err != nil {
				t.Errorf("decode: %v", err)
				return nil
			}
			var face wireFace
			face.Age = float64(img.Bounds().Dx())
			_ = conn.WriteJSON(response{ID: r.ID, OK: true, Faces: []wireFace{face}})
		}
		return nil
	})
	d := startDetector(t, fs.url())
	ctx := testContext(t)

	widths := []int{8, 16}
	ages := make([]float64, len(widths))
	errs := make([]error, len(widths))

	var wg sync.WaitGroup
	for i, w := range widths {
		i, w := i, w
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs, err := d.DetectAll(ctx, image.NewRGBA(image.Rect(0, 0, w, w)))
			errs[i] = err
			if len(recs) == 1 {
				ages[i] = recs[0].Age
			}
		}()
	}
	wg.Wait()

	for i, w := range widths {
		require.NoError(t, errs[i])
		assert.Equal(t, float64(w), ages[i])
	}
}

func TestConnectionLostFailsPending(t *testing.T) {
	fs := newFakeServer(t, func(conn *websocket.Conn, req request) *response {
		_ = conn.Close()
		return nil
	})
	d := startDetector(t, fs.url())

	_, err := d.DetectAll(testContext(t), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestDetectAllContextTimeout(t *testing.T) {
	fs := newFakeServer(t, func(_ *websocket.Conn, req request) *response {
		return nil
	})
	d := startDetector(t, fs.url())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := d.DetectAll(ctx, image.NewRGBA(image.Rect(0, 0, 8, 8)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotConnected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	srv.Close()

	d := startDetector(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := d.LoadModel(ctx, "tiny_face_detector", "/models")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, d.Connected())
}

func TestStopReleasesWaiters(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	srv.Close()

	d := startDetector(t, url)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.LoadModel(context.Background(), "ssd_mobilenetv1", "/models")
	}()

	time.Sleep(50 * time.Millisecond)
	d.Stop()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrDetectorStopped))
	case <-time.After(2 * time.Second):
		t.Fatal("LoadModel did not return after Stop")
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	fs := newFakeServer(t, func(conn *websocket.Conn, req request) *response {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()

		if first {
			_ = conn.Close()
			return nil
		}
		return &response{OK: true}
	})
	d := startDetector(t, fs.url())
	ctx := testContext(t)

	err := d.LoadModel(ctx, "face_landmark_68", "/models")
	require.ErrorIs(t, err, ErrConnectionLost)

	require.NoError(t, d.LoadModel(ctx, "face_landmark_68", "/models"))
}
