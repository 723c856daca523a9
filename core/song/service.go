package song

import (
	"context"
	"strings"
	"time"

	"FragFM/core/errs"
	"FragFM/logger"
	"FragFM/model"
	"FragFM/repository"
	"FragFM/storage"

	"golang.org/x/sync/errgroup"
)

// signConcurrency bounds parallel signing for a batch of fragments.
const signConcurrency = 8

// PrefixDeleter removes every stored object of a song.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// Options holds the URL lifetimes.
type Options struct {
	AssetURLTTL    time.Duration
	FragmentURLTTL time.Duration
}

// Service serves playback URLs and the admin catalog operations.
type Service struct {
	songs   repository.SongRepository
	signer  *Signer
	objects PrefixDeleter
	opts    Options
}

// NewService creates a new Service.
func NewService(songs repository.SongRepository, signer *Signer, objects PrefixDeleter, opts Options) *Service {
	return &Service{songs: songs, signer: signer, objects: objects, opts: opts}
}

// Decorate signs the cover and lyrics URLs of a song. The objects are not
// required to exist.
func (s *Service) Decorate(ctx context.Context, song model.Song) (model.SongInfo, error) {
	info := model.SongInfo{Song: song}
	var err error
	if info.CoverURL, err = s.signer.Sign(ctx, storage.CoverKey(song.UUID), s.opts.AssetURLTTL); err != nil {
		return info, err
	}
	if info.LyricsURL, err = s.signer.Sign(ctx, storage.LyricsKey(song.UUID), s.opts.AssetURLTTL); err != nil {
		return info, err
	}
	return info, nil
}

// Info returns an active song with signed asset URLs.
func (s *Service) Info(ctx context.Context, songUUID string) (*model.SongInfo, error) {
	song, err := s.songs.GetActiveSongByUUID(ctx, songUUID)
	if err != nil {
		return nil, err
	}
	info, err := s.Decorate(ctx, *song)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// FragmentURL signs fragment n of an active song. n must be within
// 1..fragmentCount; nothing is signed otherwise.
func (s *Service) FragmentURL(ctx context.Context, songUUID string, n int) (*model.FragmentURL, error) {
	const op = "song.FragmentURL"
	song, err := s.songs.GetActiveSongByUUID(ctx, songUUID)
	if err != nil {
		return nil, err
	}
	if n < 1 || n > song.FragmentCount {
		return nil, errs.Validationf(op, "fragment index must be between 1 and %d", song.FragmentCount)
	}
	url, err := s.signer.Sign(ctx, storage.FragmentKey(song.UUID, n), s.opts.FragmentURLTTL)
	if err != nil {
		return nil, err
	}
	return &model.FragmentURL{Index: n, URL: url}, nil
}

// FragmentURLs signs the window [start, start+count-1], clamped to the
// song's fragment count. A start past the last fragment yields an empty list.
func (s *Service) FragmentURLs(ctx context.Context, songUUID string, start, count int) ([]model.FragmentURL, error) {
	const op = "song.FragmentURLs"
	if start < 1 || count < 1 {
		return nil, errs.Validationf(op, "start and count must be positive integers")
	}
	song, err := s.songs.GetActiveSongByUUID(ctx, songUUID)
	if err != nil {
		return nil, err
	}

	end := start + count - 1
	if end > song.FragmentCount {
		end = song.FragmentCount
	}
	if start > end {
		return []model.FragmentURL{}, nil
	}

	urls := make([]model.FragmentURL, end-start+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for n := start; n <= end; n++ {
		g.Go(func() error {
			url, err := s.signer.Sign(gctx, storage.FragmentKey(song.UUID, n), s.opts.FragmentURLTTL)
			if err != nil {
				return err
			}
			urls[n-start] = model.FragmentURL{Index: n, URL: url}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// List returns every song, newest first, inactive ones included.
func (s *Service) List(ctx context.Context) ([]*model.Song, error) {
	return s.songs.ListSongs(ctx)
}

// Update edits the admin fields of a song. Setting Active to false hides it
// from playback without removing anything.
func (s *Service) Update(ctx context.Context, id int64, upd model.SongUpdate) (*model.Song, error) {
	const op = "song.Update"
	upd.Title = strings.TrimSpace(upd.Title)
	upd.Artist = strings.TrimSpace(upd.Artist)
	if upd.Title == "" || upd.Artist == "" {
		return nil, errs.Validationf(op, "title and artist are required")
	}
	if upd.Album != nil {
		if album := strings.TrimSpace(*upd.Album); album != "" {
			upd.Album = &album
		} else {
			upd.Album = nil
		}
	}

	if _, err := s.songs.GetSongByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.songs.UpdateSong(ctx, id, upd); err != nil {
		return nil, err
	}
	return s.songs.GetSongByID(ctx, id)
}

// Delete removes a song for good: its objects first, then the row and its
// playlist memberships. If the purge fails the row stays so the delete can be
// retried.
func (s *Service) Delete(ctx context.Context, id int64) error {
	song, err := s.songs.GetSongByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.objects.DeletePrefix(ctx, storage.SongPrefix(song.UUID)); err != nil {
		return err
	}
	if err := s.songs.DeleteSong(ctx, id); err != nil {
		return err
	}
	logger.Info("song deleted", logger.Int64("id", id), logger.String("uuid", song.UUID))
	return nil
}
