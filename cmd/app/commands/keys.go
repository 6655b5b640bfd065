package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	cryptoService "github.com/medvault/phivault/internal/crypto/service"
	cryptoUseCase "github.com/medvault/phivault/internal/crypto/usecase"
)

// RunCreateKey registers a new key version as read-only. The key material
// must already be present in the configured key supplier under the label.
func RunCreateKey(
	ctx context.Context,
	keyUseCase cryptoUseCase.KeyUseCase,
	ring *cryptoDomain.KeyRing,
	supplier cryptoService.KeySupplier,
	logger *slog.Logger,
	label uint64,
	algorithmStr string,
) error {
	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}

	logger.Info("creating key version",
		slog.Uint64("label", label),
		slog.String("algorithm", algorithmStr),
	)

	if err := keyUseCase.CreateVersion(ctx, ring, supplier, label, algorithm); err != nil {
		return fmt.Errorf("failed to create key version: %w", err)
	}

	logger.Info("key version created", slog.Uint64("label", label))
	return nil
}

// RunListKeys prints the registered key versions with their roles.
func RunListKeys(ring *cryptoDomain.KeyRing, w io.Writer) error {
	labels := ring.Labels()

	sorted := make([]uint64, 0, len(labels))
	for label := range labels {
		sorted = append(sorted, label)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, label := range sorted {
		if _, err := fmt.Fprintf(w, "v%d\t%s\n", label, labels[label]); err != nil {
			return err
		}
	}

	return nil
}

// RunPromoteKey makes a key version the write-current one.
func RunPromoteKey(
	ctx context.Context,
	keyUseCase cryptoUseCase.KeyUseCase,
	ring *cryptoDomain.KeyRing,
	logger *slog.Logger,
	label uint64,
) error {
	logger.Info("promoting key version", slog.Uint64("label", label))

	if err := keyUseCase.PromoteWrite(ctx, ring, label); err != nil {
		return fmt.Errorf("failed to promote key version: %w", err)
	}

	logger.Info("key version promoted to write-current", slog.Uint64("label", label))
	return nil
}

// RunRetireKey retires a key version. Refused while any row or active
// rotation job still references it.
func RunRetireKey(
	ctx context.Context,
	keyUseCase cryptoUseCase.KeyUseCase,
	ring *cryptoDomain.KeyRing,
	logger *slog.Logger,
	label uint64,
) error {
	logger.Info("retiring key version", slog.Uint64("label", label))

	if err := keyUseCase.Retire(ctx, ring, label); err != nil {
		return fmt.Errorf("failed to retire key version: %w", err)
	}

	logger.Info("key version retired", slog.Uint64("label", label))
	return nil
}
