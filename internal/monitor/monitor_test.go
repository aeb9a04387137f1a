package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Louguiman/tekra-store-sub002/internal/audit"
	"github.com/Louguiman/tekra-store-sub002/internal/audit/recorder"
	"github.com/Louguiman/tekra-store-sub002/internal/audit/store/memory"
	"github.com/Louguiman/tekra-store-sub002/internal/platform/config"
	dErrors "github.com/Louguiman/tekra-store-sub002/pkg/domain-errors"
)

const (
	chromeUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
)

type MonitorSuite struct {
	suite.Suite
	store    *memory.InMemoryStore
	recorder *recorder.Recorder
	monitor  *Monitor
}

func (s *MonitorSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()

	var err error
	s.recorder, err = recorder.New(s.store)
	s.Require().NoError(err)

	s.monitor, err = New(s.store, s.recorder, WithConfig(config.MonitorConfig{
		FailedLoginWindow:    15 * time.Minute,
		FailedLoginThreshold: 3,
		HighMultiplier:       2,
		CriticalMultiplier:   4,
		ActivityLookback:     30 * 24 * time.Hour,
	}))
	s.Require().NoError(err)
}

func TestMonitorSuite(t *testing.T) {
	suite.Run(t, new(MonitorSuite))
}

func (s *MonitorSuite) recordFailedLogins(ip string, n int) {
	failed := false
	for range n {
		_, err := s.recorder.Record(context.Background(), audit.EventInput{
			Action:       audit.ActionLogin,
			Resource:     audit.ResourceAuth,
			IPAddress:    ip,
			Success:      &failed,
			ErrorMessage: "invalid credentials",
		})
		s.Require().NoError(err)
	}
}

func (s *MonitorSuite) recordSuccessfulLogin(userID, ip, ua string) {
	_, err := s.recorder.Record(context.Background(), audit.EventInput{
		ActorID:   userID,
		Action:    audit.ActionLogin,
		Resource:  audit.ResourceAuth,
		IPAddress: ip,
		UserAgent: ua,
	})
	s.Require().NoError(err)
}

func (s *MonitorSuite) TestFailedLoginsBelowThreshold() {
	s.recordFailedLogins("10.0.0.5", 2)

	alert, err := s.monitor.CheckFailedLoginAttempts(context.Background(), "10.0.0.5")
	s.Require().NoError(err)
	s.Nil(alert)
}

func (s *MonitorSuite) TestFailedLoginsAtThreshold() {
	s.recordFailedLogins("10.0.0.5", 3)

	alert, err := s.monitor.CheckFailedLoginAttempts(context.Background(), "10.0.0.5")
	s.Require().NoError(err)
	s.Require().NotNil(alert)

	s.Equal(audit.AlertBruteForce, alert.Type)
	s.Equal(audit.SeverityMedium, alert.Severity)
	s.Equal("10.0.0.5", alert.IPAddress)
	s.Equal("10.0.0.5", alert.Details["ip"])
	s.GreaterOrEqual(alert.Details["failedAttempts"].(int), 3)
	s.Equal(audit.AlertStatusOpen, alert.Status)
}

func (s *MonitorSuite) TestFailedLoginsSeverityEscalation() {
	s.recordFailedLogins("10.0.0.6", 6)

	alert, err := s.monitor.CheckFailedLoginAttempts(context.Background(), "10.0.0.6")
	s.Require().NoError(err)
	s.Require().NotNil(alert)
	s.Equal(audit.SeverityHigh, alert.Severity)

	s.recordFailedLogins("10.0.0.7", 12)

	alert, err = s.monitor.CheckFailedLoginAttempts(context.Background(), "10.0.0.7")
	s.Require().NoError(err)
	s.Require().NotNil(alert)
	s.Equal(audit.SeverityCritical, alert.Severity)
}

func (s *MonitorSuite) TestFailedLoginsIgnoreOtherIPs() {
	s.recordFailedLogins("10.0.0.5", 5)

	alert, err := s.monitor.CheckFailedLoginAttempts(context.Background(), "192.168.1.1")
	s.Require().NoError(err)
	s.Nil(alert)
}

func (s *MonitorSuite) TestFailedLoginsRequireIP() {
	_, err := s.monitor.CheckFailedLoginAttempts(context.Background(), "")
	s.Require().Error(err)
	s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
}

func (s *MonitorSuite) TestUnusualActivityNoHistory() {
	alert, err := s.monitor.CheckUnusualActivity(context.Background(), "user-1", "10.0.0.5", chromeUA)
	s.Require().NoError(err)
	s.Nil(alert, "a user with no login history has no baseline")
}

func (s *MonitorSuite) TestUnusualActivityKnownIP() {
	s.recordSuccessfulLogin("user-1", "10.0.0.5", chromeUA)

	alert, err := s.monitor.CheckUnusualActivity(context.Background(), "user-1", "10.0.0.5", firefoxUA)
	s.Require().NoError(err)
	s.Nil(alert, "a known IP is enough to trust the login")
}

func (s *MonitorSuite) TestUnusualActivityKnownBrowser() {
	s.recordSuccessfulLogin("user-1", "10.0.0.5", chromeUA)

	alert, err := s.monitor.CheckUnusualActivity(context.Background(), "user-1", "203.0.113.9", chromeUA)
	s.Require().NoError(err)
	s.Nil(alert, "a known browser family is enough to trust the login")
}

func (s *MonitorSuite) TestUnusualActivityWhitespaceUserAgent() {
	s.recordSuccessfulLogin("user-1", "10.0.0.5", chromeUA)

	alert, err := s.monitor.CheckUnusualActivity(context.Background(), "user-1", "203.0.113.9", "   ")
	s.Require().NoError(err)
	s.Require().NotNil(alert, "an unparseable user agent from a new IP is still unrecognized")
	s.Equal(audit.SeverityMedium, alert.Severity)
	s.Equal("unknown", alert.Details["browser"])
}

func (s *MonitorSuite) TestUnusualActivityNewIPAndBrowser() {
	s.recordSuccessfulLogin("user-1", "10.0.0.5", chromeUA)

	alert, err := s.monitor.CheckUnusualActivity(context.Background(), "user-1", "203.0.113.9", firefoxUA)
	s.Require().NoError(err)
	s.Require().NotNil(alert)

	s.Equal(audit.AlertUnusualActivity, alert.Type)
	s.Equal(audit.SeverityMedium, alert.Severity)
	s.Equal("user-1", alert.AffectedUserID)
	s.Equal("203.0.113.9", alert.IPAddress)
}

func (s *MonitorSuite) TestUnusualActivityOtherUsersHistoryIgnored() {
	s.recordSuccessfulLogin("user-2", "203.0.113.9", firefoxUA)
	s.recordSuccessfulLogin("user-1", "10.0.0.5", chromeUA)

	alert, err := s.monitor.CheckUnusualActivity(context.Background(), "user-1", "203.0.113.9", firefoxUA)
	s.Require().NoError(err)
	s.Require().NotNil(alert, "another user's sources must not vouch for this one")
}
