package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/mock/gomock"

	"vigil/internal/platform/config"
	"vigil/internal/presence/models"
	"vigil/internal/presence/service/mocks"
	dErrors "vigil/pkg/domain-errors"
)

func (s *ServiceSuite) TestStartPushModeConnectsOnce() {
	s.startPush()

	// A second Start must not reconnect or rewire handlers.
	s.Require().NoError(s.service.Start())
}

func (s *ServiceSuite) TestEventsFlowIntoStore() {
	h := s.startPush()

	h.OnEvent(models.UsersReplaceEvent([]models.PresenceUser{
		{UserID: "u-1", TenantID: "t-1", IsOnline: true},
		{UserID: "u-2", TenantID: "t-1", IsOnline: true},
	}))
	s.Len(s.service.Snapshot().Users, 2)

	h.OnEvent(models.UserRemovedEvent("u-1"))
	snap := s.service.Snapshot()
	s.Len(snap.Users, 1)
	s.Equal("u-2", snap.Users[0].UserID)
}

func (s *ServiceSuite) TestSetFilterRidesOpenSocket() {
	filter := models.Filter{TenantID: "t-1", Limit: 50}
	s.mockConn.EXPECT().Send(models.TypeRequestUsers, filter).Return(true)

	s.Require().NoError(s.service.SetFilter(context.Background(), filter))
	s.Equal(filter, s.service.Filter())
}

func (s *ServiceSuite) TestSetFilterFallsBackToRest() {
	filter := models.Filter{TenantID: "t-2"}
	s.mockConn.EXPECT().Send(models.TypeRequestUsers, filter).Return(false)
	s.mockActions.EXPECT().Refresh(gomock.Any(), filter).Return(nil)

	s.Require().NoError(s.service.SetFilter(context.Background(), filter))
}

func (s *ServiceSuite) TestReconnectReassertsFilter() {
	h := s.startPush()
	filter := models.Filter{TenantID: "t-1"}

	s.mockConn.EXPECT().Send(models.TypeRequestUsers, filter).Return(true)
	s.Require().NoError(s.service.SetFilter(context.Background(), filter))

	// The open hook replays the active filter so a reconnect keeps the
	// narrowed view.
	s.mockConn.EXPECT().Send(models.TypeRequestUsers, filter).Return(true)
	h.OnOpen()
}

func (s *ServiceSuite) TestForceOfflineSuccess() {
	s.mockActions.EXPECT().SetOffline(gomock.Any(), "u-1").
		Return(&models.ActionResult{Success: true, Message: "user set offline"}, nil)

	res, err := s.service.ForceOffline(context.Background(), "u-1")
	s.Require().NoError(err)
	s.True(res.Success)
	s.Empty(s.service.CurrentError())
}

func (s *ServiceSuite) TestForceOfflineFailureShowsTransientError() {
	s.seedUsers("u-1", "u-2")
	s.mockActions.EXPECT().SetOffline(gomock.Any(), "u-1").
		Return(nil, dErrors.New(dErrors.CodeInternal, "session store down"))

	_, err := s.service.ForceOffline(context.Background(), "u-1")
	s.Require().Error(err)
	s.Equal("session store down", s.service.CurrentError())
	s.Len(s.service.Snapshot().Users, 2, "a failed action must not mutate the view")

	s.Require().Eventually(func() bool { return s.service.CurrentError() == "" },
		2*time.Second, 10*time.Millisecond, "banner must clear after the display window")
}

func (s *ServiceSuite) TestErrorWindowMeasuredFromLatestFailure() {
	ctx := context.Background()
	s.mockActions.EXPECT().Cleanup(gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "first failure"))
	s.mockActions.EXPECT().Cleanup(gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnavailable, "second failure"))

	_, _ = s.service.CleanupStale(ctx)
	time.Sleep(40 * time.Millisecond)
	_, _ = s.service.CleanupStale(ctx)
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first failure its window has lapsed; the banner must
	// still show because the second failure rearmed the timer.
	s.Equal("second failure", s.service.CurrentError())
	s.Require().Eventually(func() bool { return s.service.CurrentError() == "" },
		2*time.Second, 10*time.Millisecond)
}

func (s *ServiceSuite) TestBulkForceOffline() {
	want := &models.BulkResult{Success: true, Message: "bulk offline complete", UpdatedCount: 2}
	s.mockActions.EXPECT().BulkSetOffline(gomock.Any(), []string{"u-1", "u-2"}).Return(want, nil)

	got, err := s.service.BulkForceOffline(context.Background(), []string{"u-1", "u-2"})
	s.Require().NoError(err)
	s.Equal(want, got)
	s.Empty(s.service.CurrentError())
}

func (s *ServiceSuite) TestCleanupStale() {
	want := &models.ActionResult{Success: true, Message: "removed 4 stale sessions"}
	s.mockActions.EXPECT().Cleanup(gomock.Any()).Return(want, nil)

	got, err := s.service.CleanupStale(context.Background())
	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *ServiceSuite) TestRefreshNowUsesActiveFilter() {
	filter := models.Filter{TenantID: "t-3"}
	s.mockConn.EXPECT().Send(models.TypeRequestUsers, filter).Return(true)
	s.Require().NoError(s.service.SetFilter(context.Background(), filter))

	s.mockActions.EXPECT().Refresh(gomock.Any(), filter).Return(nil)
	s.Require().NoError(s.service.RefreshNow(context.Background()))
}

func (s *ServiceSuite) TestSessionDetailErrorStaysOutOfBanner() {
	s.mockActions.EXPECT().FetchSession(gomock.Any(), "u-404").
		Return(nil, dErrors.New(dErrors.CodeNotFound, "no active session"))

	_, err := s.service.SessionDetail(context.Background(), "u-404")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.service.CurrentError(), "dialog lookups handle their own errors")
}

func (s *ServiceSuite) TestTenantUsers() {
	want := &models.TenantPresence{TenantID: "t-1", TenantName: "Acme", OnlineCount: 3}
	s.mockActions.EXPECT().FetchTenant(gomock.Any(), "t-1").Return(want, nil)

	got, err := s.service.TenantUsers(context.Background(), "t-1")
	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *ServiceSuite) TestActionPendingDelegates() {
	s.mockActions.EXPECT().Pending("u-1").Return(true)
	s.True(s.service.ActionPending("u-1"))
}

func (s *ServiceSuite) TestUnauthorizedLatchesSessionExpiredOnce() {
	var hooks atomic.Int32
	mockConn := mocks.NewMockConnection(s.ctrl)
	actions := mocks.NewMockActionClient(s.ctrl)
	svc, err := New(s.store, actions, config.Client{PushEnabled: true, PollInterval: time.Hour},
		WithConnection(mockConn),
		WithLogger(testLogger()),
		WithSessionExpiredHook(func() { hooks.Add(1) }),
	)
	s.Require().NoError(err)

	authErr := dErrors.New(dErrors.CodeUnauthorized, "token expired")
	actions.EXPECT().SetOffline(gomock.Any(), "u-1").Return(nil, authErr).Times(2)
	mockConn.EXPECT().Disconnect()

	_, err = svc.ForceOffline(context.Background(), "u-1")
	s.Require().Error(err)
	_, err = svc.ForceOffline(context.Background(), "u-1")
	s.Require().Error(err)

	s.True(svc.SessionExpired())
	s.Equal(int32(1), hooks.Load(), "expiry hook must fire exactly once")
}

func (s *ServiceSuite) TestUnauthorizedSocketCloseExpiresSession() {
	h := s.startPush()
	s.mockConn.EXPECT().Disconnect()

	h.OnClose(dErrors.New(dErrors.CodeUnauthorized, "socket handshake rejected"))
	s.True(s.service.SessionExpired())
}

func (s *ServiceSuite) TestTransientSocketCloseStaysSilent() {
	h := s.startPush()

	h.OnClose(errors.New("read: connection reset by peer"))
	s.False(s.service.SessionExpired())
	s.Empty(s.service.CurrentError(), "connection drops surface through state, not the banner")
}

func (s *ServiceSuite) TestPollModePrimesImmediately() {
	actions := mocks.NewMockActionClient(s.ctrl)
	done := make(chan struct{})
	actions.EXPECT().Refresh(gomock.Any(), models.Filter{}).
		DoAndReturn(func(context.Context, models.Filter) error {
			close(done)
			return nil
		})

	svc, err := New(s.store, actions, config.Client{PushEnabled: false, PollInterval: time.Hour},
		WithLogger(testLogger()))
	s.Require().NoError(err)
	s.T().Cleanup(svc.Close)

	s.Require().NoError(svc.Start())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.Fail("prime refresh never issued")
	}
	s.Equal(models.StateDisconnected, svc.ConnectionState())
}

func (s *ServiceSuite) TestPollTickerKeepsRefreshing() {
	actions := mocks.NewMockActionClient(s.ctrl)
	var calls atomic.Int32
	actions.EXPECT().Refresh(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, models.Filter) error {
			calls.Add(1)
			return nil
		}).AnyTimes()

	svc, err := New(s.store, actions, config.Client{PushEnabled: false, PollInterval: 15 * time.Millisecond},
		WithLogger(testLogger()))
	s.Require().NoError(err)
	s.T().Cleanup(svc.Close)

	s.Require().NoError(svc.Start())
	s.Require().Eventually(func() bool { return calls.Load() >= 3 },
		2*time.Second, 5*time.Millisecond)
}

func (s *ServiceSuite) TestPollFailureSurfacesThenRecovers() {
	actions := mocks.NewMockActionClient(s.ctrl)
	var failed atomic.Bool
	actions.EXPECT().Refresh(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, models.Filter) error {
			if failed.CompareAndSwap(false, true) {
				return dErrors.New(dErrors.CodeUnavailable, "api unreachable")
			}
			return nil
		}).AnyTimes()

	svc, err := New(s.store, actions, config.Client{PushEnabled: false, PollInterval: 15 * time.Millisecond},
		WithLogger(testLogger()), WithErrorWindow(60*time.Millisecond))
	s.Require().NoError(err)
	s.T().Cleanup(svc.Close)

	s.Require().NoError(svc.Start())
	s.Require().Eventually(func() bool { return failed.Load() },
		2*time.Second, 5*time.Millisecond)
	s.Require().Eventually(func() bool { return svc.CurrentError() == "" },
		2*time.Second, 10*time.Millisecond, "banner must clear once polling recovers")
}

func (s *ServiceSuite) TestUnauthorizedStopsPolling() {
	actions := mocks.NewMockActionClient(s.ctrl)
	var calls atomic.Int32
	actions.EXPECT().Refresh(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, models.Filter) error {
			calls.Add(1)
			return dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}).AnyTimes()

	svc, err := New(s.store, actions, config.Client{PushEnabled: false, PollInterval: 10 * time.Millisecond},
		WithLogger(testLogger()))
	s.Require().NoError(err)
	s.T().Cleanup(svc.Close)

	s.Require().NoError(svc.Start())
	s.Require().Eventually(func() bool { return svc.SessionExpired() },
		2*time.Second, 5*time.Millisecond)

	// The loop must stop hammering an expired session.
	settled := calls.Load()
	time.Sleep(80 * time.Millisecond)
	s.LessOrEqual(calls.Load(), settled+1)
}

func (s *ServiceSuite) TestCloseIsIdempotent() {
	s.mockConn.EXPECT().Close()

	s.service.Close()
	s.service.Close()

	err := s.service.Start()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestNewValidation() {
	_, err := New(nil, s.mockActions, config.Client{})
	s.Error(err)

	_, err = New(s.store, nil, config.Client{})
	s.Error(err)

	_, err = New(s.store, s.mockActions, config.Client{PushEnabled: true})
	s.Error(err, "push mode requires a connection")
}
