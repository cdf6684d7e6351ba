package db

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pushchain/svm-txkit/store"
)

// RecordSubmission inserts a submission attempt.
func (d *DB) RecordSubmission(s *store.Submission) error {
	if s.Signature == "" {
		return errors.New("submission signature is required")
	}
	if err := d.client.Create(s).Error; err != nil {
		return errors.Wrapf(err, "failed to record submission %s", s.Signature)
	}
	return nil
}

// UpdateSubmissionStatus moves a recorded submission to status.
func (d *DB) UpdateSubmissionStatus(signature, status string, slot uint64, errCode, errMsg string) error {
	result := d.client.Model(&store.Submission{}).
		Where("signature = ?", signature).
		Updates(map[string]interface{}{
			"status":     status,
			"slot":       slot,
			"error_code": errCode,
			"error_msg":  errMsg,
		})
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update submission %s", signature)
	}
	if result.RowsAffected == 0 {
		return errors.Errorf("submission %s not found", signature)
	}
	return nil
}

// GetSubmission returns the submission recorded under signature.
func (d *DB) GetSubmission(signature string) (*store.Submission, error) {
	var s store.Submission
	if err := d.client.Where("signature = ?", signature).First(&s).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to get submission %s", signature)
	}
	return &s, nil
}

// ListSubmissions returns the most recent submissions, filtered by status when
// it is non-empty. A non-positive limit returns all of them.
func (d *DB) ListSubmissions(status string, limit int) ([]store.Submission, error) {
	query := d.client.Order("id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var out []store.Submission
	if err := query.Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list submissions")
	}
	return out, nil
}

// DeleteOldSubmissions permanently removes settled submissions last updated
// before the retention period.
func (d *DB) DeleteOldSubmissions(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := d.client.Unscoped().
		Where("status IN ? AND updated_at < ?",
			[]string{store.StatusConfirmed, store.StatusFailed, store.StatusExpired}, cutoff).
		Delete(&store.Submission{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old submissions")
	}
	return result.RowsAffected, nil
}

// RecordProvisioned stores a provisioning outcome. The first outcome for an
// address wins; later ones are ignored.
func (d *DB) RecordProvisioned(p *store.ProvisionedAccount) error {
	err := d.client.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}).Create(p).Error
	if err != nil {
		return errors.Wrapf(err, "failed to record provisioned account %s", p.Address)
	}
	return nil
}

// GetProvisioned returns the recorded outcome for address.
func (d *DB) GetProvisioned(address string) (*store.ProvisionedAccount, error) {
	var p store.ProvisionedAccount
	if err := d.client.Where("address = ?", address).First(&p).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to get provisioned account %s", address)
	}
	return &p, nil
}

// IsNotFound reports whether err is a missing-row error from this package.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
