package app

import (
	"context"

	recordsHTTP "github.com/medvault/phivault/internal/records/http"
	recordsRepository "github.com/medvault/phivault/internal/records/repository"
	recordsService "github.com/medvault/phivault/internal/records/service"
	recordsUseCase "github.com/medvault/phivault/internal/records/usecase"
)

// RecordRepository returns the patient record repository for the configured
// database driver.
func (c *Container) RecordRepository() (recordsUseCase.RecordRepository, error) {
	c.recordRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.storeInitError("recordRepo", err)
			return
		}

		if c.config.DBDriver == "mysql" {
			c.recordRepo = recordsRepository.NewMySQLRecordRepository(db)
		} else {
			c.recordRepo = recordsRepository.NewPostgreSQLRecordRepository(db)
		}
	})
	if err := c.initError("recordRepo"); err != nil {
		return nil, err
	}
	return c.recordRepo, nil
}

// FieldAdapter returns the transparent field encryption adapter.
func (c *Container) FieldAdapter(ctx context.Context) (*recordsService.FieldAdapter, error) {
	c.fieldAdapterInit.Do(func() {
		codec, err := c.Codec(ctx)
		if err != nil {
			c.storeInitError("fieldAdapter", err)
			return
		}
		c.fieldAdapter = recordsService.NewFieldAdapter(codec)
	})
	if err := c.initError("fieldAdapter"); err != nil {
		return nil, err
	}
	return c.fieldAdapter, nil
}

// RecordUseCase returns the patient record use case.
func (c *Container) RecordUseCase(ctx context.Context) (recordsUseCase.RecordUseCase, error) {
	c.recordUseCaseInit.Do(func() {
		recordRepo, err := c.RecordRepository()
		if err != nil {
			c.storeInitError("recordUseCase", err)
			return
		}

		adapter, err := c.FieldAdapter(ctx)
		if err != nil {
			c.storeInitError("recordUseCase", err)
			return
		}

		c.recordUseCase = recordsUseCase.NewRecordUseCase(recordRepo, adapter)
	})
	if err := c.initError("recordUseCase"); err != nil {
		return nil, err
	}
	return c.recordUseCase, nil
}

// RecordHandler returns the patient record HTTP handler.
func (c *Container) RecordHandler() (*recordsHTTP.RecordHandler, error) {
	c.recordHandlerInit.Do(func() {
		recordUC, err := c.RecordUseCase(context.Background())
		if err != nil {
			c.storeInitError("recordHandler", err)
			return
		}

		c.recordHandler = recordsHTTP.NewRecordHandler(recordUC, c.Logger())
	})
	if err := c.initError("recordHandler"); err != nil {
		return nil, err
	}
	return c.recordHandler, nil
}
