package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"growthcore/internal/blob"
	"growthcore/pkg/domain"
)

const proofPrefix = "proofs/"

// VisualProofKey returns the blob key for an experiment attachment.
func VisualProofKey(experimentID, name string) string {
	return proofPrefix + experimentID + "/" + name
}

func cleanProofName(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(trimmed(name), "\\", "/"))
	if base == "" || base == "." || base == "/" || base == ".." {
		return "", &domain.ValidationError{Field: "name", Reason: "attachment name is required"}
	}
	return base, nil
}

// AttachVisualProof uploads r to the blob store and records its key on the
// experiment. The upload is removed again if the record cannot be updated.
func (s *Service) AttachVisualProof(ctx context.Context, id, name string, r io.Reader, contentType string) (Experiment, Result, error) {
	var updated Experiment
	var res Result
	err := s.run(ctx, OpAttachVisualProof, id, func(ctx context.Context) error {
		if s.blobs == nil {
			return fmt.Errorf("attach visual proof: %w", ErrNoBlobStore)
		}
		if _, ok := s.store.GetExperiment(id); !ok {
			return notFound(domain.EntityExperiment, id)
		}
		clean, err := cleanProofName(name)
		if err != nil {
			return err
		}
		key := VisualProofKey(id, clean)
		if _, err := s.blobs.Put(ctx, key, r, blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"experiment_id": id},
		}); err != nil {
			return fmt.Errorf("attach visual proof %s: %w", key, err)
		}
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateExperiment(id, func(e *Experiment) error {
				if !slices.Contains(e.VisualProof, key) {
					e.VisualProof = append(e.VisualProof, key)
				}
				return nil
			})
			return err
		})
		if err != nil {
			if _, derr := s.blobs.Delete(ctx, key); derr != nil {
				s.logger.Warn("visual proof cleanup failed", "key", key, "error", derr)
			}
			return err
		}
		_ = s.checkpoint(ctx, OpAttachVisualProof)
		return nil
	})
	if err != nil {
		return Experiment{}, res, err
	}
	return updated, res, nil
}

// VisualProofURL returns a time-limited URL for an attachment key.
func (s *Service) VisualProofURL(ctx context.Context, key string) (string, error) {
	var url string
	err := s.run(ctx, OpPresignVisualProofURL, key, func(ctx context.Context) error {
		if s.blobs == nil {
			return fmt.Errorf("visual proof url: %w", ErrNoBlobStore)
		}
		if !strings.HasPrefix(key, proofPrefix) {
			return &domain.ValidationError{Field: "key", Reason: "not a visual proof key"}
		}
		var err error
		url, err = s.blobs.PresignURL(ctx, key, blob.SignedURLOptions{})
		if err != nil {
			return fmt.Errorf("visual proof url %s: %w", key, err)
		}
		return nil
	})
	return url, err
}

func (s *Service) removeProofs(ctx context.Context, keys []string) {
	if s.blobs == nil {
		return
	}
	for _, key := range keys {
		if _, err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("visual proof cleanup failed", "key", key, "error", err)
		}
	}
}
