// Package gdrive uploads daily consultation digests to a shared Google
// Drive folder so case officers can review calls without access to the
// host machine.
package gdrive

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

type Syncer struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewSyncer(ctx context.Context, credPath, folderID string) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Syncer{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// Sync uploads the digest for one date as a Google Doc. When the same
// date was already uploaded, whether by this process or an earlier run,
// the existing document is updated in place rather than duplicated.
func (s *Syncer) Sync(localPath, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	name := fmt.Sprintf("visavox-calls-%s", date)

	fileID, ok := s.fileIDs[date]
	if !ok {
		fileID, err = s.lookupFileID(name)
		if err != nil {
			return err
		}
	}

	if fileID != "" {
		if _, err := s.service.Files.Update(fileID, &drive.File{}).Media(f).Do(); err != nil {
			return fmt.Errorf("drive update %s: %w", name, err)
		}
		s.fileIDs[date] = fileID
		return nil
	}

	doc, err := s.service.Files.Create(&drive.File{
		Name:        name,
		Description: "Daily visa consultation digest",
		MimeType:    "application/vnd.google-apps.document",
		Parents:     []string{s.folderID},
	}).Media(f).Do()
	if err != nil {
		return fmt.Errorf("drive create %s: %w", name, err)
	}

	s.fileIDs[date] = doc.Id
	return nil
}

// lookupFileID finds a prior upload of the same digest so a restarted
// process keeps writing to the document officers already have open.
func (s *Syncer) lookupFileID(name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", name, s.folderID)
	list, err := s.service.Files.List().Q(query).Fields("files(id)").PageSize(1).Do()
	if err != nil {
		return "", fmt.Errorf("drive lookup %s: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}
