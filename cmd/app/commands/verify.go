package commands

import (
	"context"
	"fmt"
	"io"

	cryptoUseCase "github.com/medvault/phivault/internal/crypto/usecase"
)

// RunVerify counts residual encrypted rows per registered key version and
// prints one line per version. A version with zero rows is safe to retire;
// a completed rotation must leave zero rows on its source version.
func RunVerify(
	ctx context.Context,
	keyVersionRepo cryptoUseCase.KeyVersionRepository,
	recordCounter cryptoUseCase.RecordCounter,
	w io.Writer,
) error {
	versions, err := keyVersionRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list key versions: %w", err)
	}

	for _, kv := range versions {
		count, err := recordCounter.CountByVersion(ctx, kv.Label)
		if err != nil {
			return fmt.Errorf("failed to count rows for version %d: %w", kv.Label, err)
		}

		if _, err := fmt.Fprintf(w, "v%d\t%s\t%d rows\n", kv.Label, kv.Role, count); err != nil {
			return err
		}
	}

	return nil
}
