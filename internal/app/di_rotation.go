package app

import (
	"context"

	auditRepository "github.com/medvault/phivault/internal/audit/repository"
	auditUseCase "github.com/medvault/phivault/internal/audit/usecase"
	rotationHTTP "github.com/medvault/phivault/internal/rotation/http"
	rotationRepository "github.com/medvault/phivault/internal/rotation/repository"
	rotationUseCase "github.com/medvault/phivault/internal/rotation/usecase"
)

// RotationJobRepository returns the rotation job repository for the
// configured database driver.
func (c *Container) RotationJobRepository() (rotationUseCase.RotationJobRepository, error) {
	c.rotationJobRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.storeInitError("rotationJobRepo", err)
			return
		}

		if c.config.DBDriver == "mysql" {
			c.rotationJobRepo = rotationRepository.NewMySQLRotationJobRepository(db)
		} else {
			c.rotationJobRepo = rotationRepository.NewPostgreSQLRotationJobRepository(db)
		}
	})
	if err := c.initError("rotationJobRepo"); err != nil {
		return nil, err
	}
	return c.rotationJobRepo, nil
}

// AuditEventRepository returns the rotation audit trail repository for the
// configured database driver.
func (c *Container) AuditEventRepository() (auditUseCase.EventRepository, error) {
	c.auditEventRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.storeInitError("auditEventRepo", err)
			return
		}

		if c.config.DBDriver == "mysql" {
			c.auditEventRepo = auditRepository.NewMySQLAuditEventRepository(db)
		} else {
			c.auditEventRepo = auditRepository.NewPostgreSQLAuditEventRepository(db)
		}
	})
	if err := c.initError("auditEventRepo"); err != nil {
		return nil, err
	}
	return c.auditEventRepo, nil
}

// AuditEmitter returns the audit event emitter backed by the audit_events
// table.
func (c *Container) AuditEmitter() (auditUseCase.Emitter, error) {
	c.auditEmitterInit.Do(func() {
		eventRepo, err := c.AuditEventRepository()
		if err != nil {
			c.storeInitError("auditEmitter", err)
			return
		}

		c.auditEmitter = auditUseCase.NewDBEmitter(eventRepo, c.Logger())
	})
	if err := c.initError("auditEmitter"); err != nil {
		return nil, err
	}
	return c.auditEmitter, nil
}

// RotationUseCase returns the rotation orchestrator wrapped with business
// metrics.
func (c *Container) RotationUseCase(ctx context.Context) (rotationUseCase.RotationUseCase, error) {
	c.rotationUCInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.storeInitError("rotationUseCase", err)
			return
		}

		jobRepo, err := c.RotationJobRepository()
		if err != nil {
			c.storeInitError("rotationUseCase", err)
			return
		}

		recordRepo, err := c.RecordRepository()
		if err != nil {
			c.storeInitError("rotationUseCase", err)
			return
		}

		codec, err := c.Codec(ctx)
		if err != nil {
			c.storeInitError("rotationUseCase", err)
			return
		}

		promoter, err := c.KeyPromoter(ctx)
		if err != nil {
			c.storeInitError("rotationUseCase", err)
			return
		}

		emitter, err := c.AuditEmitter()
		if err != nil {
			c.storeInitError("rotationUseCase", err)
			return
		}

		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.storeInitError("rotationUseCase", err)
			return
		}

		orchestrator := rotationUseCase.NewRotationOrchestrator(
			rotationUseCase.Config{
				BatchSize:         c.config.RotationBatchSize,
				Workers:           c.config.RotationWorkers,
				RowsPerSec:        c.config.RotationRowsPerSec,
				LeaseTTL:          c.config.RotationLeaseTTL,
				AbortOnRowFailure: c.config.RotationAbortOnRowFailure,
			},
			txManager,
			jobRepo,
			recordRepo,
			codec,
			promoter,
			emitter,
			c.Logger(),
		)

		c.rotationUC = rotationUseCase.NewRotationUseCaseWithMetrics(orchestrator, businessMetrics)
	})
	if err := c.initError("rotationUseCase"); err != nil {
		return nil, err
	}
	return c.rotationUC, nil
}

// RotationHandler returns the rotation job HTTP handler.
func (c *Container) RotationHandler() (*rotationHTTP.RotationHandler, error) {
	c.rotationHandlerInit.Do(func() {
		rotationUC, err := c.RotationUseCase(context.Background())
		if err != nil {
			c.storeInitError("rotationHandler", err)
			return
		}

		eventRepo, err := c.AuditEventRepository()
		if err != nil {
			c.storeInitError("rotationHandler", err)
			return
		}

		c.rotationHandler = rotationHTTP.NewRotationHandler(rotationUC, eventRepo, c.Logger())
	})
	if err := c.initError("rotationHandler"); err != nil {
		return nil, err
	}
	return c.rotationHandler, nil
}
