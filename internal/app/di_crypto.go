package app

import (
	"context"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	cryptoHTTP "github.com/medvault/phivault/internal/crypto/http"
	cryptoRepository "github.com/medvault/phivault/internal/crypto/repository"
	cryptoService "github.com/medvault/phivault/internal/crypto/service"
	cryptoUseCase "github.com/medvault/phivault/internal/crypto/usecase"
	rotationUseCase "github.com/medvault/phivault/internal/rotation/usecase"
)

// KeySupplier returns the external key supplier. With KMS_KEY_URI set, field
// keys come KMS-wrapped via FIELD_KEYS_WRAPPED; otherwise raw keys come from
// FIELD_KEYS.
func (c *Container) KeySupplier(ctx context.Context) (cryptoService.KeySupplier, error) {
	c.keySupplierInit.Do(func() {
		if c.config.KMSKeyURI != "" {
			supplier, err := cryptoService.NewKeeperKeySupplier(ctx, c.config.KMSKeyURI)
			if err != nil {
				c.storeInitError("keySupplier", err)
				return
			}
			c.keySupplier = supplier
			return
		}

		supplier, err := cryptoService.LoadEnvKeySupplier()
		if err != nil {
			c.storeInitError("keySupplier", err)
			return
		}
		c.keySupplier = supplier
	})
	if err := c.initError("keySupplier"); err != nil {
		return nil, err
	}
	return c.keySupplier, nil
}

// KeyVersionRepository returns the key version repository for the configured
// database driver.
func (c *Container) KeyVersionRepository() (cryptoUseCase.KeyVersionRepository, error) {
	c.keyVersionRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.storeInitError("keyVersionRepo", err)
			return
		}

		if c.config.DBDriver == "mysql" {
			c.keyVersionRepo = cryptoRepository.NewMySQLKeyVersionRepository(db)
		} else {
			c.keyVersionRepo = cryptoRepository.NewPostgreSQLKeyVersionRepository(db)
		}
	})
	if err := c.initError("keyVersionRepo"); err != nil {
		return nil, err
	}
	return c.keyVersionRepo, nil
}

// KeyUseCase returns the key lifecycle use case.
func (c *Container) KeyUseCase() (cryptoUseCase.KeyUseCase, error) {
	c.keyUseCaseInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.storeInitError("keyUseCase", err)
			return
		}

		keyVersionRepo, err := c.KeyVersionRepository()
		if err != nil {
			c.storeInitError("keyUseCase", err)
			return
		}

		recordRepo, err := c.RecordRepository()
		if err != nil {
			c.storeInitError("keyUseCase", err)
			return
		}

		rotationJobRepo, err := c.RotationJobRepository()
		if err != nil {
			c.storeInitError("keyUseCase", err)
			return
		}

		c.keyUseCase = cryptoUseCase.NewKeyUseCase(
			txManager,
			keyVersionRepo,
			recordRepo,
			rotationJobRepo,
			c.config.KeyMinDistinctByteRatio,
		)
	})
	if err := c.initError("keyUseCase"); err != nil {
		return nil, err
	}
	return c.keyUseCase, nil
}

// KeyRing returns the in-memory key ring, loading it from persisted key
// version state and the key supplier on first access.
func (c *Container) KeyRing(ctx context.Context) (*cryptoDomain.KeyRing, error) {
	c.keyRingInit.Do(func() {
		keyUC, err := c.KeyUseCase()
		if err != nil {
			c.storeInitError("keyRing", err)
			return
		}

		supplier, err := c.KeySupplier(ctx)
		if err != nil {
			c.storeInitError("keyRing", err)
			return
		}

		ring, err := keyUC.LoadRing(ctx, supplier)
		if err != nil {
			c.storeInitError("keyRing", err)
			return
		}
		c.keyRing = ring
	})
	if err := c.initError("keyRing"); err != nil {
		return nil, err
	}
	return c.keyRing, nil
}

// Codec returns the field encryption codec bound to the key ring.
func (c *Container) Codec(ctx context.Context) (cryptoService.Codec, error) {
	c.codecInit.Do(func() {
		ring, err := c.KeyRing(ctx)
		if err != nil {
			c.storeInitError("codec", err)
			return
		}
		c.codec = cryptoService.NewFieldCodec(ring)
	})
	if err := c.initError("codec"); err != nil {
		return nil, err
	}
	return c.codec, nil
}

// KeyHandler returns the key lifecycle HTTP handler.
func (c *Container) KeyHandler() (*cryptoHTTP.KeyHandler, error) {
	c.keyHandlerInit.Do(func() {
		ctx := context.Background()

		keyUC, err := c.KeyUseCase()
		if err != nil {
			c.storeInitError("keyHandler", err)
			return
		}

		ring, err := c.KeyRing(ctx)
		if err != nil {
			c.storeInitError("keyHandler", err)
			return
		}

		supplier, err := c.KeySupplier(ctx)
		if err != nil {
			c.storeInitError("keyHandler", err)
			return
		}

		c.keyHandler = cryptoHTTP.NewKeyHandler(keyUC, ring, supplier, c.Logger())
	})
	if err := c.initError("keyHandler"); err != nil {
		return nil, err
	}
	return c.keyHandler, nil
}

// ringPromoter adapts the key use case to the rotation orchestrator's
// KeyPromoter dependency, binding the loaded ring.
type ringPromoter struct {
	keyUseCase cryptoUseCase.KeyUseCase
	ring       *cryptoDomain.KeyRing
}

// PromoteWrite switches the write-current key version.
func (p *ringPromoter) PromoteWrite(ctx context.Context, label uint64) error {
	return p.keyUseCase.PromoteWrite(ctx, p.ring, label)
}

// KeyPromoter returns the rotation orchestrator's key promoter.
func (c *Container) KeyPromoter(ctx context.Context) (rotationUseCase.KeyPromoter, error) {
	keyUC, err := c.KeyUseCase()
	if err != nil {
		return nil, err
	}

	ring, err := c.KeyRing(ctx)
	if err != nil {
		return nil, err
	}

	return &ringPromoter{keyUseCase: keyUC, ring: ring}, nil
}
