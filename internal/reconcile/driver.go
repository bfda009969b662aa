package reconcile

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"leasepurge/internal/dhcp"
	"leasepurge/internal/mac"
	"leasepurge/pkg/models"
	"leasepurge/pkg/utils"
)

var (
	// ErrMissingLeaseFile is returned when the lease file does not exist.
	ErrMissingLeaseFile = errors.New("the leases file does not exist")
	// ErrNoAddresses is returned when the directory yields no addresses,
	// either because it has none or because it could not be queried.
	ErrNoAddresses = errors.New("no MACs found in LDAP or there was an error during the search")
	// ErrLeaseFileModified is returned when the lease file changes while
	// it is being rewritten.
	ErrLeaseFileModified = errors.New("the leases file was modified during the run")
)

// AddressProvider supplies the hardware addresses whose leases are removed
type AddressProvider interface {
	Addresses() mac.Set
}

// Watcher reports changes of the lease file made by someone else
type Watcher interface {
	Watch(path string) error
	Modified() bool
	Close() error
}

// Driver runs a complete reconciliation of a lease file
type Driver struct {
	Provider   AddressProvider
	Files      *utils.FileManager
	NewWatcher func() Watcher
	Now        func() time.Time
	DryRun     bool
}

// NewDriver creates a driver using the wall clock and no change watcher
func NewDriver(provider AddressProvider) *Driver {
	return &Driver{
		Provider: provider,
		Files:    &utils.FileManager{},
		Now:      time.Now,
	}
}

// Run removes the leases of the provider's addresses from leasesFile. The
// original file is copied to a timestamped backup before it is overwritten.
func (d *Driver) Run(leasesFile string) (*models.Summary, error) {
	exists, err := d.Files.IsExist(leasesFile)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrapf(ErrMissingLeaseFile, "%s", leasesFile)
	}

	addrs := d.Provider.Addresses()
	if addrs.Len() == 0 {
		return nil, ErrNoAddresses
	}
	log.Infof("Found %d MAC addresses to process", addrs.Len())
	log.WithField("macs", addrs.Sorted()).Debug("MAC addresses to remove")

	var watcher Watcher
	if d.NewWatcher != nil {
		watcher = d.NewWatcher()
		if err := watcher.Watch(leasesFile); err != nil {
			log.WithError(err).Warn("Cannot watch the leases file for changes")
			watcher = nil
		} else {
			defer watcher.Close()
		}
	}

	tempPath, result, err := d.rewrite(leasesFile, addrs)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = d.Files.RemoveIfExist(tempPath)
	}()

	summary := &models.Summary{
		Addresses:     addrs.Len(),
		Removed:       result.RemovedCount(),
		Total:         result.OriginalCount,
		Remaining:     result.NewCount,
		RemovedLeases: result.Removed,
		DryRun:        d.DryRun,
		Truncated:     result.Truncated,
	}

	log.Info("Process completed")
	log.Infof("Removed %d lease entries out of a total of %d", summary.Removed, summary.Total)

	if d.DryRun {
		for _, lease := range summary.RemovedLeases {
			log.WithField("mac", lease.Address).Infof("Would remove %s", lease.FirstLine)
		}
		log.WithField("file", leasesFile).Info("Dry run; the leases file was not changed")
		return summary, nil
	}

	if watcher != nil {
		if watcher.Modified() {
			return nil, errors.Wrapf(ErrLeaseFileModified, "%s", leasesFile)
		}
		// Our own write below must not be reported.
		_ = watcher.Close()
	}

	backupPath := utils.BackupPath(leasesFile, d.Now())
	if err := d.Files.CopyFile(leasesFile, backupPath); err != nil {
		return nil, errors.WithMessage(err, "cannot create the backup")
	}
	summary.BackupFile = backupPath
	log.Infof("A backup has been created at %s", backupPath)

	if err := d.Files.CopyFile(tempPath, leasesFile); err != nil {
		return summary, errors.WithMessagef(err, "cannot update the leases file; the original is kept at %s", backupPath)
	}
	if err := d.Files.RemoveIfExist(tempPath); err != nil {
		log.WithError(err).Warn("Cannot remove the temporary file")
	}
	log.Infof("The file %s has been updated", leasesFile)

	return summary, nil
}

// rewrite writes the retained content of leasesFile to a temporary file
// next to it and returns the temporary file path. The temporary file is
// removed on failure.
func (d *Driver) rewrite(leasesFile string, addrs mac.Set) (tempPath string, result *models.RewriteResult, err error) {
	log.Info("Processing leases file")

	in, err := os.Open(leasesFile)
	if err != nil {
		return "", nil, errors.Wrapf(err, "cannot open the leases file: %s", leasesFile)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", nil, errors.Wrapf(err, "cannot stat the leases file: %s", leasesFile)
	}

	temp, err := os.CreateTemp(filepath.Dir(leasesFile), filepath.Base(leasesFile)+".tmp*")
	if err != nil {
		return "", nil, errors.Wrap(err, "cannot create a temporary file")
	}
	tempPath = temp.Name()
	defer func() {
		if closeErr := temp.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "cannot close the temporary file: %s", tempPath)
		}
		if err != nil {
			_ = os.Remove(tempPath)
			tempPath = ""
			result = nil
		}
	}()

	result, err = dhcp.NewRewriter(addrs).Rewrite(in, temp)
	if err != nil {
		return tempPath, nil, err
	}
	if err = temp.Chmod(info.Mode().Perm()); err != nil {
		return tempPath, nil, errors.Wrapf(err, "cannot set permissions of the temporary file: %s", tempPath)
	}
	return tempPath, result, nil
}
