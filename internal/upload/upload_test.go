package upload_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uploadkit/uploader/internal/observabilitytest"
	"github.com/uploadkit/uploader/internal/transport"
	"github.com/uploadkit/uploader/internal/transporttest"
	"github.com/uploadkit/uploader/internal/upload"
)

// progressLog records listener calls.
type progressLog struct {
	mu    sync.Mutex
	calls [][2]int64
}

func (l *progressLog) listen(sent, total int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, [2]int64{sent, total})
}

func (l *progressLog) get() [][2]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][2]int64(nil), l.calls...)
}

func newFakeUpload(
	t *testing.T,
	size int,
	opts ...upload.Option,
) (*upload.Upload, *transporttest.FakeTransport) {
	t.Helper()
	fake := transporttest.NewFakeTransport()
	u := upload.New(
		"http://ha.local/api/upload",
		upload.BytesPayload(make([]byte, size), "application/octet-stream"),
		map[string]string{"authorization": "Bearer XYZ"},
		append([]upload.Option{
			upload.WithTransport(fake),
			upload.WithLogger(observabilitytest.NewTestLogger(t)),
		}, opts...)...,
	)
	return u, fake
}

func waitFor(t *testing.T, f *upload.Future) (*upload.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := f.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return resp, err
}

func TestStart_ProgressThenLoad(t *testing.T) {
	const mb = 1 << 20
	u, fake := newFakeUpload(t, 10*mb)
	progress := &progressLog{}
	u.SetListener(progress.listen)

	future := u.Start()
	handle := fake.Last()
	handle.Progress(0, 10*mb)
	handle.Progress(5*mb, 10*mb)
	handle.Progress(10*mb, 10*mb)
	handle.Load(&transport.Completion{
		Status:     200,
		StatusText: "OK",
		RawHeaders: "Content-Type: application/json\r\n",
		Body:       []byte(`{"id":"abc"}`),
	})
	resp, err := waitFor(t, future)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "OK", resp.StatusText)
	assert.Equal(t, "application/json", resp.Get("content-type"))
	assert.Equal(t,
		[][2]int64{{0, 10 * mb}, {5 * mb, 10 * mb}, {10 * mb, 10 * mb}, {10 * mb, 10 * mb}},
		progress.get())
	assert.EqualValues(t, 10*mb, u.SentBytes())
	assert.EqualValues(t, 10*mb, u.TotalBytes())
}

func TestStart_LoadWithoutProgressReportsFullSize(t *testing.T) {
	u, fake := newFakeUpload(t, 100)
	progress := &progressLog{}
	u.SetListener(progress.listen)

	future := u.Start()
	fake.Last().Load(&transport.Completion{Status: 201})
	_, err := waitFor(t, future)

	require.NoError(t, err)
	assert.Equal(t, [][2]int64{{100, 100}}, progress.get())
	assert.EqualValues(t, 100, u.SentBytes())
	assert.EqualValues(t, 100, u.TotalBytes())
}

func TestStart_SendsPOSTWithHeadersVerbatim(t *testing.T) {
	u, fake := newFakeUpload(t, 3)

	u.Start()
	req := fake.Last().Request

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "http://ha.local/api/upload", req.URL)
	assert.Equal(t,
		[]transport.Header{{Name: "authorization", Value: "Bearer XYZ"}},
		req.Header)
	assert.EqualValues(t, 3, req.Size)
	assert.Equal(t, "application/octet-stream", req.ContentType)
}

func TestStart_ErrorStatusResolves(t *testing.T) {
	u, fake := newFakeUpload(t, 10)

	future := u.Start()
	fake.Last().Load(&transport.Completion{Status: 413, StatusText: "Payload Too Large"})
	resp, err := waitFor(t, future)

	require.NoError(t, err)
	assert.Equal(t, 413, resp.Status)
	assert.False(t, resp.OK())
}

func TestStart_Twice(t *testing.T) {
	u, fake := newFakeUpload(t, 10)

	first := u.Start()
	second := u.Start()

	assert.Same(t, first, second)
	assert.Len(t, fake.Handles(), 1)
}

func TestNew_DoesNotSend(t *testing.T) {
	_, fake := newFakeUpload(t, 10)

	assert.Empty(t, fake.Handles())
}

func TestAbort_BeforeAnyProgress(t *testing.T) {
	u, fake := newFakeUpload(t, 10)
	progress := &progressLog{}
	u.SetListener(progress.listen)

	future := u.Start()
	u.Abort()
	_, err := waitFor(t, future)

	assert.ErrorIs(t, err, upload.ErrAborted)
	assert.True(t, upload.IsAborted(err))
	assert.Equal(t, "abort", err.Error())
	assert.Empty(t, progress.get())
	assert.Equal(t, 1, fake.Last().AbortCalls())
}

func TestAbort_BeforeStartIsNoOp(t *testing.T) {
	u, fake := newFakeUpload(t, 10)

	u.Abort()
	assert.Empty(t, fake.Handles())

	future := u.Start()
	fake.Last().Load(&transport.Completion{Status: 200})
	resp, err := waitFor(t, future)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Zero(t, fake.Last().AbortCalls())
}

func TestAbort_AfterSuccessIsNoOp(t *testing.T) {
	u, fake := newFakeUpload(t, 10)

	future := u.Start()
	fake.Last().Load(&transport.Completion{Status: 200, Body: []byte("ok")})
	before, err := waitFor(t, future)
	require.NoError(t, err)
	u.Abort()
	after, err := future.Wait()

	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Zero(t, fake.Last().AbortCalls())
}

func TestAbort_Idempotent(t *testing.T) {
	u, fake := newFakeUpload(t, 10)

	future := u.Start()
	u.Abort()
	u.Abort()
	_, err := waitFor(t, future)
	u.Abort()

	assert.ErrorIs(t, err, upload.ErrAborted)
	assert.Equal(t, 1, fake.Last().AbortCalls())
}

func TestAbort_KeepsLastProgress(t *testing.T) {
	fake := transporttest.NewFakeTransport()
	fake.ManualAbort = true
	u := upload.New("http://x", upload.BytesPayload(make([]byte, 100), ""), nil,
		upload.WithTransport(fake))
	progress := &progressLog{}
	u.SetListener(progress.listen)

	future := u.Start()
	handle := fake.Last()
	handle.Progress(40, 100)
	u.Abort()
	handle.Progress(60, 100)
	handle.DeliverAbort()
	_, err := waitFor(t, future)

	assert.ErrorIs(t, err, upload.ErrAborted)
	assert.Equal(t, [][2]int64{{40, 100}}, progress.get())
	assert.EqualValues(t, 40, u.SentBytes())
	assert.EqualValues(t, 100, u.TotalBytes())
}

func TestAbort_LoadDeliveredFirstWins(t *testing.T) {
	fake := transporttest.NewFakeTransport()
	fake.ManualAbort = true
	u := upload.New("http://x", upload.BytesPayload(make([]byte, 8), ""), nil,
		upload.WithTransport(fake))

	future := u.Start()
	handle := fake.Last()
	u.Abort()
	handle.Load(&transport.Completion{Status: 201})
	handle.DeliverAbort()
	resp, err := waitFor(t, future)

	require.NoError(t, err)
	assert.Equal(t, 201, resp.Status)
}

func TestAbort_FromListener(t *testing.T) {
	u, fake := newFakeUpload(t, 100)
	progress := &progressLog{}
	u.SetListener(func(sent, total int64) {
		progress.listen(sent, total)
		if sent >= 50 {
			u.Abort()
		}
	})

	future := u.Start()
	handle := fake.Last()
	handle.Progress(10, 100)
	handle.Progress(50, 100)
	handle.Progress(90, 100)
	_, err := waitFor(t, future)

	assert.ErrorIs(t, err, upload.ErrAborted)
	assert.Equal(t, [][2]int64{{10, 100}, {50, 100}}, progress.get())
}

func TestTransportError(t *testing.T) {
	u, fake := newFakeUpload(t, 10)
	cause := errors.New("connection reset by peer")

	future := u.Start()
	fake.Last().Error(cause)
	_, err := waitFor(t, future)

	var transportErr *upload.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, upload.ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, upload.ErrAborted)
	assert.Equal(t, "error: connection reset by peer", err.Error())
}

func TestTerminalEventsAfterSettlementAreIgnored(t *testing.T) {
	fake := transporttest.NewFakeTransport()
	fake.ManualAbort = true
	u := upload.New("http://x", upload.BytesPayload(make([]byte, 10), ""), nil,
		upload.WithTransport(fake))
	progress := &progressLog{}
	u.SetListener(progress.listen)

	future := u.Start()
	handle := fake.Last()
	handle.Progress(10, 10)
	handle.Load(&transport.Completion{Status: 200})
	handle.Error(errors.New("late"))
	handle.DeliverAbort()
	handle.Progress(3, 10)
	resp, err := waitFor(t, future)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, [][2]int64{{10, 10}, {10, 10}}, progress.get())
	assert.EqualValues(t, 10, u.SentBytes())
}

func TestProgressIsMonotonicAndBounded(t *testing.T) {
	u, fake := newFakeUpload(t, 100)
	progress := &progressLog{}
	u.SetListener(progress.listen)

	future := u.Start()
	handle := fake.Last()
	for _, sent := range []int64{0, 30, 20, 70, 150, 90} {
		handle.Progress(sent, 100)
	}
	handle.Load(&transport.Completion{Status: 200})
	_, err := waitFor(t, future)

	require.NoError(t, err)
	calls := progress.get()
	for i, call := range calls {
		assert.LessOrEqual(t, call[0], call[1])
		if i > 0 {
			assert.GreaterOrEqual(t, call[0], calls[i-1][0])
		}
	}
	assert.Equal(t, [2]int64{100, 100}, calls[len(calls)-1])
}

func TestSetListener_LastWriteWins(t *testing.T) {
	u, fake := newFakeUpload(t, 10)
	first, second := &progressLog{}, &progressLog{}

	u.SetListener(first.listen)
	u.SetListener(second.listen)
	u.Start()
	fake.Last().Progress(5, 10)

	assert.Empty(t, first.get())
	assert.Equal(t, [][2]int64{{5, 10}}, second.get())
}

func TestSetListener_AfterStart(t *testing.T) {
	u, fake := newFakeUpload(t, 10)
	progress := &progressLog{}

	u.Start()
	handle := fake.Last()
	handle.Progress(2, 10)
	u.SetListener(progress.listen)
	handle.Progress(6, 10)

	assert.Equal(t, [][2]int64{{6, 10}}, progress.get())
}

// nilHandleTransport breaks the transport contract by returning no handle.
type nilHandleTransport struct {
	events transport.Events
}

func (n *nilHandleTransport) Send(
	_ *transport.Request,
	events transport.Events,
) transport.Handle {
	n.events = events
	return nil
}

func TestLoadWithoutHandlePanics(t *testing.T) {
	broken := &nilHandleTransport{}
	u := upload.New("http://x", upload.BytesPayload(nil, ""), nil,
		upload.WithTransport(broken))

	u.Start()

	assert.Panics(t, func() {
		broken.events.OnLoad(&transport.Completion{Status: 200})
	})
}

type recordingObserver struct {
	mu       sync.Mutex
	progress int
	outcomes []upload.Outcome
}

func (o *recordingObserver) UploadProgress(id string, sent, total int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress++
}

func (o *recordingObserver) UploadFinished(id string, outcome upload.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func TestObserver(t *testing.T) {
	observer := &recordingObserver{}
	u, fake := newFakeUpload(t, 10, upload.WithObserver(observer))

	future := u.Start()
	fake.Last().Progress(5, 10)
	fake.Last().Error(errors.New("no such host"))
	_, err := waitFor(t, future)

	assert.ErrorIs(t, err, upload.ErrTransport)
	observer.mu.Lock()
	defer observer.mu.Unlock()
	assert.Equal(t, 1, observer.progress)
	assert.Equal(t, []upload.Outcome{upload.OutcomeFailed}, observer.outcomes)
}

func TestWait_AbortsWhenContextEnds(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		u, fake := newFakeUpload(t, 10)
		ctx, cancel := context.WithTimeout(t.Context(), time.Hour)
		defer cancel()
		start := time.Now()

		_, err := upload.Wait(ctx, u, u.Start())

		assert.ErrorIs(t, err, upload.ErrAborted)
		assert.Equal(t, time.Hour, time.Since(start))
		assert.Equal(t, 1, fake.Last().AbortCalls())
	})
}

func TestWait_ReturnsCompletedResult(t *testing.T) {
	u, fake := newFakeUpload(t, 10)

	future := u.Start()
	fake.Last().Load(&transport.Completion{Status: 204})
	resp, err := upload.Wait(context.Background(), u, future)

	require.NoError(t, err)
	assert.Equal(t, 204, resp.Status)
}

func TestFuture_AwaitDoesNotAbort(t *testing.T) {
	u, fake := newFakeUpload(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	future := u.Start()
	_, err := future.Await(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, future.Settled())
	assert.Zero(t, fake.Last().AbortCalls())
}
