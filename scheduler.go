// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package netq

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/anser/netq/endpoint"
	"github.com/anser/netq/paging"
	"github.com/anser/netq/request"
	"github.com/anser/netq/retry"
	"github.com/anser/netq/session"
	"github.com/anser/netq/timeout"
	"github.com/anser/netq/transient"
)

// A Scheduler turns request descriptors into running network
// operations: it resolves the endpoint's headers and session, runs the
// retry pipeline over fresh network tasks, validates and decodes the
// response, and hands back a shareable handle.
//
// The zero value is a valid scheduler using the default session
// registry, default lanes, the default timeout policy, and no logging.
// A Scheduler is safe for concurrent use by multiple goroutines.
type Scheduler struct {
	// Registry resolves transport configurations to shared sessions.
	// Nil means session.DefaultRegistry.
	Registry *session.Registry

	// Lanes dispatches final result deliveries by request priority.
	// Nil means a process-wide default dispatcher.
	Lanes *Lanes

	// Logger receives structured debug logging. Nil means no logging.
	Logger *zap.Logger

	// Timeout is the per-attempt timeout policy applied to
	// descriptors that do not set their own Timeout. Nil means
	// timeout.DefaultPolicy.
	Timeout timeout.Policy
}

func (sch *Scheduler) registry() *session.Registry {
	if sch.Registry != nil {
		return sch.Registry
	}
	return session.DefaultRegistry
}

func (sch *Scheduler) lanes() *Lanes {
	if sch.Lanes != nil {
		return sch.Lanes
	}
	return &defaultLanes
}

func (sch *Scheduler) logger() *zap.Logger {
	if sch.Logger != nil {
		return sch.Logger
	}
	return zap.NewNop()
}

func (sch *Scheduler) policy() timeout.Policy {
	if sch.Timeout != nil {
		return sch.Timeout
	}
	return timeout.DefaultPolicy
}

var errNilDescriptor = errors.New("netq: nil descriptor")
var errNilEndpoint = errors.New("netq: nil endpoint")

// Schedule prepares the network operation described by d against ep
// and returns its Handle. Validation failures, a bad base URL, and a
// failing endpoint header source short-circuit here, before any
// network activity. The operation itself starts lazily, on the
// handle's first attachment, and runs at most once no matter how many
// consumers attach.
func (sch *Scheduler) Schedule(ctx context.Context, d *request.Descriptor, ep *endpoint.Endpoint) (*Handle, error) {
	if d == nil {
		return nil, errNilDescriptor
	}
	if ep == nil {
		return nil, errNilEndpoint
	}
	base, hdr, err := sch.prepare(ctx, d, ep)
	if err != nil {
		return nil, sch.reject(ep, d, err)
	}
	sess := sch.registry().Session(ep.Transport)
	factory := ep.Retry
	if factory == nil {
		factory = retry.DefaultFactory
	}
	retrier := factory(d)

	wctx, cancelWork := context.WithCancel(ctx)
	cd := &conduit{}
	var h *Handle
	run := func() {
		v, err := sch.execute(wctx, d, ep, sess, base, hdr, retrier, cd)
		sch.lanes().Dispatch(d.Priority, func() {
			h.complete(v, err)
		})
	}
	h = newHandle(run, func() {
		cd.cancel()
		cancelWork()
	})
	return h, nil
}

// prepare runs the pre-network steps shared by HTTP and WebSocket
// scheduling: descriptor validation, base URL resolution, header
// merging, and a build dry run so a malformed route never costs a
// connection.
func (sch *Scheduler) prepare(ctx context.Context, d *request.Descriptor, ep *endpoint.Endpoint) (*url.URL, http.Header, error) {
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}
	base, err := ep.URL()
	if err != nil {
		return nil, nil, err
	}
	hdr, err := ep.ResolveHeader(ctx, d.Header)
	if err != nil {
		return nil, nil, err
	}
	if _, err := d.ToRequest(ctx, base, hdr); err != nil {
		return nil, nil, err
	}
	return base, hdr, nil
}

// execute runs the retry pipeline for one scheduled request: fresh
// wire request and network task per attempt, status validation,
// decoding, and hook notification. It returns the decoded value or
// the terminal error.
func (sch *Scheduler) execute(ctx context.Context, d *request.Descriptor, ep *endpoint.Endpoint, sess *session.Session, base *url.URL, hdr http.Header, r retry.Retrier, cd *conduit) (interface{}, error) {
	log := sch.logger()
	s := &request.State{Descriptor: d, Start: time.Now()}
	defer func() { s.End = time.Now() }()

	for {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if to := sch.attemptTimeout(d, s); to > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, to)
		}
		wire, err := d.ToRequest(attemptCtx, base, hdr)
		if err != nil {
			cancel()
			return sch.fail(ep, s, err)
		}
		s.Request = wire

		if s.Attempt == 0 && ep.Hook != nil {
			if v, ok := ep.Hook.OnSchedule(d, wire); ok {
				cancel()
				log.Debug("request served from hook",
					zap.String("method", wire.Method),
					zap.String("route", d.Route))
				return v, nil
			}
		}

		task := session.NewTask(sess, wire)
		if !cd.install(task) {
			cancel()
			return nil, context.Canceled
		}
		<-task.Done()
		cancel()
		res := task.Result()
		s.Status = res.Status
		s.Header = res.Header
		s.Body = res.Body
		s.Err = res.Err

		var failure error
		switch {
		case res.Err != nil:
			failure = res.Err
		case !d.Accept.Contains(res.Status):
			failure = &StatusError{Code: res.Status, Body: res.Body}
		}
		if failure == nil {
			decode := d.Decode
			if decode == nil {
				decode = request.RawDecode
			}
			v, derr := decode(res.Body)
			if derr != nil {
				return sch.fail(ep, s, &DecodeError{Cause: derr})
			}
			if ep.Hook != nil {
				ep.Hook.OnSuccess(d, wire, v)
			}
			log.Debug("request succeeded",
				zap.String("method", wire.Method),
				zap.String("route", d.Route),
				zap.Int("status", res.Status),
				zap.Int("attempt", s.Attempt))
			return v, nil
		}

		s.Err = failure
		if transient.Categorize(failure) == transient.Timeout {
			s.AttemptTimeouts++
		}
		if ctx.Err() != nil {
			// Consumer teardown, not a failure to report.
			return nil, ctx.Err()
		}

		ask := s.Attempt == 0 || retry.AllowsMultiple(r)
		if ask && r.Retry(ctx, s, failure) {
			log.Debug("retrying request",
				zap.String("method", wire.Method),
				zap.String("route", d.Route),
				zap.Int("attempt", s.Attempt),
				zap.Error(failure))
			s.Attempt++
			continue
		}
		return sch.fail(ep, s, failure)
	}
}

func (sch *Scheduler) attemptTimeout(d *request.Descriptor, s *request.State) time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return sch.policy().Timeout(s)
}

func (sch *Scheduler) fail(ep *endpoint.Endpoint, s *request.State, err error) (interface{}, error) {
	if ep.Hook != nil {
		ep.Hook.OnFailure(err)
	}
	sch.logger().Debug("request failed",
		zap.String("route", s.Descriptor.Route),
		zap.Int("attempts", s.Attempt+1),
		zap.Error(err))
	return nil, err
}

// reject reports a terminal failure that occurred before any network
// activity, so hooks observe rejected schedules the same way they
// observe failed ones.
func (sch *Scheduler) reject(ep *endpoint.Endpoint, d *request.Descriptor, err error) error {
	if ep.Hook != nil {
		ep.Hook.OnFailure(err)
	}
	sch.logger().Debug("request rejected",
		zap.String("route", d.Route),
		zap.Error(err))
	return err
}

// ScheduleStream prepares the WebSocket operation described by d
// against ep and returns its Stream. The descriptor's route and query
// are resolved against the endpoint's base URL, whose scheme is
// translated to the WebSocket equivalent (http to ws, https to wss).
// The connection is dialed lazily, on the stream's first attachment,
// and runs through the same pipeline as a scheduled request: the
// endpoint's hook may short-circuit the dial, a handshake failure
// consults the endpoint's retrier, and each received message is
// decoded with the descriptor's decode function.
func (sch *Scheduler) ScheduleStream(ctx context.Context, d *request.Descriptor, ep *endpoint.Endpoint) (*Stream, error) {
	if d == nil {
		return nil, errNilDescriptor
	}
	if ep == nil {
		return nil, errNilEndpoint
	}
	base, hdr, err := sch.prepare(ctx, d, ep)
	if err != nil {
		return nil, sch.reject(ep, d, err)
	}
	wire, err := d.ToRequest(ctx, base, hdr)
	if err != nil {
		return nil, sch.reject(ep, d, err)
	}
	u := *wire.URL
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, sch.reject(ep, d, &request.BuildError{Reason: "scheme " + u.Scheme + " cannot carry a stream"})
	}
	sess := sch.registry().Session(ep.Transport)
	factory := ep.Retry
	if factory == nil {
		factory = retry.DefaultFactory
	}
	retrier := factory(d)

	wctx, cancelWork := context.WithCancel(ctx)
	cd := &conduit{}
	st := newStream()
	st.run = func() {
		sch.executeStream(wctx, d, ep, sess, u.String(), hdr, wire, retrier, cd, st)
	}
	st.cancel = func() {
		cd.cancel()
		cancelWork()
	}
	return st, nil
}

// executeStream runs the retry pipeline for one scheduled stream:
// fresh stream task per dial attempt, handshake validation against the
// per-attempt timeout, per-message decoding, and hook notification.
// Once a connection is live the dial is never re-run; a later
// transport failure or peer close is the stream's terminal outcome.
func (sch *Scheduler) executeStream(ctx context.Context, d *request.Descriptor, ep *endpoint.Endpoint, sess *session.Session, urlStr string, hdr http.Header, wire *http.Request, r retry.Retrier, cd *conduit, st *Stream) {
	log := sch.logger()
	s := &request.State{Descriptor: d, Start: time.Now()}
	defer func() { s.End = time.Now() }()

	if ep.Hook != nil {
		if v, ok := ep.Hook.OnSchedule(d, wire); ok {
			log.Debug("stream served from hook", zap.String("route", d.Route))
			sch.lanes().Dispatch(d.Priority, func() {
				st.broadcast(StreamItem{Value: v})
				st.finish(nil)
			})
			return
		}
	}
	decode := d.Decode
	if decode == nil {
		decode = request.RawDecode
	}

	for {
		task := session.NewStreamTask(ctx, sess, urlStr, hdr)
		if !cd.install(task) {
			st.finish(context.Canceled)
			return
		}

		var expired <-chan time.Time
		var timer *time.Timer
		if to := sch.attemptTimeout(d, s); to > 0 {
			timer = time.NewTimer(to)
			expired = timer.C
		}
		var failure error
		select {
		case <-task.Ready():
			if timer != nil {
				timer.Stop()
			}
			if !task.Connected() {
				// Ready was released by a terminal failure, not a
				// handshake; Done has already closed.
				<-task.Done()
				failure = task.Err()
			}
		case <-expired:
			task.Cancel()
			failure = transient.NewError(context.DeadlineExceeded)
		}

		if failure == nil {
			st.goLive(task)
			log.Debug("stream connected",
				zap.String("route", d.Route),
				zap.Int("attempt", s.Attempt))
			sch.pumpStream(ctx, d, ep, task, decode, st)
			return
		}

		s.Err = failure
		if transient.Categorize(failure) == transient.Timeout {
			s.AttemptTimeouts++
		}
		if ctx.Err() != nil {
			// Consumer teardown, not a failure to report.
			st.finish(ctx.Err())
			return
		}
		ask := s.Attempt == 0 || retry.AllowsMultiple(r)
		if ask && r.Retry(ctx, s, failure) {
			log.Debug("retrying stream dial",
				zap.String("route", d.Route),
				zap.Int("attempt", s.Attempt),
				zap.Error(failure))
			s.Attempt++
			continue
		}
		if ep.Hook != nil {
			ep.Hook.OnFailure(failure)
		}
		log.Debug("stream failed",
			zap.String("route", d.Route),
			zap.Int("attempts", s.Attempt+1),
			zap.Error(failure))
		sch.lanes().Dispatch(d.Priority, func() {
			st.finish(failure)
		})
		return
	}
}

// pumpStream moves messages from the live task to the stream's
// cursors, decoding each one, and delivers the terminal outcome on the
// descriptor's priority lane. Message fan-out stays on this goroutine
// so the delivered order matches the wire order.
func (sch *Scheduler) pumpStream(ctx context.Context, d *request.Descriptor, ep *endpoint.Endpoint, task *session.StreamTask, decode request.DecodeFunc, st *Stream) {
	deliver := func(m session.Message) {
		v, derr := decode(m.Data)
		if derr != nil {
			st.broadcast(StreamItem{Err: &DecodeError{Cause: derr}})
			return
		}
		st.broadcast(StreamItem{Value: v})
	}
	for {
		select {
		case m := <-task.Messages():
			deliver(m)
		case <-task.Done():
			// Deliver anything still buffered before terminating.
			for {
				select {
				case m := <-task.Messages():
					deliver(m)
				default:
					err := task.Err()
					if ctx.Err() != nil {
						st.finish(ctx.Err())
						return
					}
					if ep.Hook != nil {
						ep.Hook.OnFailure(err)
					}
					sch.logger().Debug("stream terminated",
						zap.String("route", d.Route),
						zap.Error(err))
					sch.lanes().Dispatch(d.Priority, func() {
						st.finish(err)
					})
					return
				}
			}
		}
	}
}

// Paginate sequences dependent page requests driven by ticks. fetch
// typically schedules a request through the scheduler and blocks on
// its ticket; see package paging for the sequencing contract.
func (sch *Scheduler) Paginate(ctx context.Context, fetch paging.PageFunc, ticks <-chan struct{}) *paging.Sequence {
	return paging.NewConduit(fetch, sch.Logger).Connect(ctx, ticks)
}
