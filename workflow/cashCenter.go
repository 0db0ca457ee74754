package workflow

import (
	"bitbucket.org/mmdatafocus/cashcenter_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const moduleName = "workflow"

// CashCenter runs the transactional cash-center operations. Every mutating
// method runs in one DB transaction that also writes the audit row and the
// outbox event.
type CashCenter struct {
	DB                       *gorm.DB
	Logger                   *logrus.Logger
	Tolerance                TolerancePolicy
	RequireResolvedIncidents bool
	// UseRedisLock takes the cross-instance transaction lock around
	// container submissions.
	UseRedisLock bool
}

func NewCashCenter(db *gorm.DB, logger *logrus.Logger) *CashCenter {
	return &CashCenter{
		DB:                       db,
		Logger:                   logger,
		Tolerance:                NewZeroTolerancePolicy(),
		RequireResolvedIncidents: config.RequireResolvedIncidents(),
		UseRedisLock:             true,
	}
}

func (s *CashCenter) logError(funcName string, context string, data any, err error) {
	config.LogError(s.Logger, moduleName, funcName, context, data, err)
}
