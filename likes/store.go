// Package likes persists the listener's liked songs, playlists and albums
// in BoltDB. Each bucket key is the item's normalized identity, so the
// uniqueness rule is enforced by the key itself.
package likes

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"jine-api-go/logcolors"
	"jine-api-go/utils"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	songsBucket     = "liked_songs"
	playlistsBucket = "liked_playlists"
	albumsBucket    = "liked_albums"

	// DefaultImage is stored for songs liked without artwork
	DefaultImage = "src/images/user_img.jpeg"
)

var allBuckets = []string{songsBucket, playlistsBucket, albumsBucket}

// ErrInvalidItem is returned when a required field is missing
var ErrInvalidItem = errors.New("title and artist are required")

// Song is a liked song. Songs are unique by title and artist, ignoring
// case and extra whitespace.
type Song struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Image     string    `json:"image"`
	DateAdded time.Time `json:"dateAdded"`
	Seq       uint64    `json:"-"`
}

// Playlist is a liked playlist, unique by title
type Playlist struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Description string    `json:"description,omitempty"`
	DateAdded   time.Time `json:"dateAdded"`
	Seq         uint64    `json:"-"`
}

// Album is a liked album, unique by title
type Album struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	DateAdded time.Time `json:"dateAdded"`
	Seq       uint64    `json:"-"`
}

// Stats counts liked items per kind
type Stats struct {
	LikedSongs     int `json:"likedSongs"`
	LikedPlaylists int `json:"likedPlaylists"`
	LikedAlbums    int `json:"likedAlbums"`
}

// record is the stored form; Seq orders items by insertion
type record[T any] struct {
	Seq  uint64 `json:"seq"`
	Item T      `json:"item"`
}

// Store is the BoltDB-backed liked-items store
type Store struct {
	db         *bolt.DB
	dbPath     string
	backupPath string
	now        func() time.Time
	mu         sync.Mutex
}

// Open opens (or creates) the store at dbPath. Backups are written to
// backupPath.
func Open(dbPath, backupPath string) (*Store, error) {
	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database at %s (%d bytes)", logcolors.LogLikesInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database at %s", logcolors.LogLikesInit, dbPath)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create likes directory: %w", err)
	}
	if backupPath != "" {
		if err := os.MkdirAll(backupPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open likes database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create likes buckets: %w", err)
	}

	return &Store{
		db:         db,
		dbPath:     dbPath,
		backupPath: backupPath,
		now:        time.Now,
	}, nil
}

// AddSong stores a song unless one with the same title and artist exists.
// It returns false for a duplicate. A missing ID becomes a millisecond
// timestamp and a missing image the default image.
func (s *Store) AddSong(song Song) (bool, error) {
	if strings.TrimSpace(song.Title) == "" || strings.TrimSpace(song.Artist) == "" {
		return false, ErrInvalidItem
	}
	now := s.now()
	if song.ID == "" {
		song.ID = timestampID(now)
	}
	if song.Image == "" {
		song.Image = DefaultImage
	}
	song.DateAdded = now

	added, err := put(s, songsBucket, songKey(song.Title, song.Artist), song)
	if err == nil {
		if added {
			log.Infof("%s Liked song %q by %s", logcolors.LogLikes, song.Title, song.Artist)
		} else {
			log.Debugf("%s Song %q already liked", logcolors.LogLikes, song.Title)
		}
	}
	return added, err
}

// RemoveSong deletes the song matching title and artist. It returns false
// if no such song was liked.
func (s *Store) RemoveSong(title, artist string) (bool, error) {
	key := []byte(songKey(title, artist))
	removed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(songsBucket))
		if b.Get(key) == nil {
			return nil
		}
		removed = true
		return b.Delete(key)
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove song: %w", err)
	}
	if removed {
		log.Infof("%s Unliked song %q by %s", logcolors.LogLikes, title, artist)
	}
	return removed, nil
}

// IsSongLiked reports whether a song with title and artist is liked
func (s *Store) IsSongLiked(title, artist string) (bool, error) {
	liked := false
	err := s.db.View(func(tx *bolt.Tx) error {
		liked = tx.Bucket([]byte(songsBucket)).Get([]byte(songKey(title, artist))) != nil
		return nil
	})
	return liked, err
}

// Songs returns liked songs, most recent first
func (s *Store) Songs() ([]Song, error) {
	songs, err := list[Song](s, songsBucket, func(song *Song, seq uint64) { song.Seq = seq })
	sort.Slice(songs, func(i, j int) bool { return songs[i].Seq > songs[j].Seq })
	return songs, err
}

// AddPlaylist stores a playlist unless one with the same title exists. The
// artist falls back to the description, then to "Playlist".
func (s *Store) AddPlaylist(p Playlist) (bool, error) {
	if strings.TrimSpace(p.Title) == "" {
		return false, ErrInvalidItem
	}
	now := s.now()
	if p.ID == "" {
		p.ID = timestampID(now)
	}
	if p.Artist == "" {
		p.Artist = p.Description
	}
	if p.Artist == "" {
		p.Artist = "Playlist"
	}
	p.DateAdded = now
	return put(s, playlistsBucket, utils.NormalizeKey(p.Title), p)
}

// Playlists returns liked playlists, most recent first
func (s *Store) Playlists() ([]Playlist, error) {
	playlists, err := list[Playlist](s, playlistsBucket, func(p *Playlist, seq uint64) { p.Seq = seq })
	sort.Slice(playlists, func(i, j int) bool { return playlists[i].Seq > playlists[j].Seq })
	return playlists, err
}

// AddAlbum stores an album unless one with the same title exists. The
// artist falls back to "Unknown Artist".
func (s *Store) AddAlbum(a Album) (bool, error) {
	if strings.TrimSpace(a.Title) == "" {
		return false, ErrInvalidItem
	}
	now := s.now()
	if a.ID == "" {
		a.ID = timestampID(now)
	}
	if a.Artist == "" {
		a.Artist = "Unknown Artist"
	}
	a.DateAdded = now
	return put(s, albumsBucket, utils.NormalizeKey(a.Title), a)
}

// Albums returns liked albums, most recent first
func (s *Store) Albums() ([]Album, error) {
	albums, err := list[Album](s, albumsBucket, func(a *Album, seq uint64) { a.Seq = seq })
	sort.Slice(albums, func(i, j int) bool { return albums[i].Seq > albums[j].Seq })
	return albums, err
}

// Stats counts the liked items of each kind
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.View(func(tx *bolt.Tx) error {
		st.LikedSongs = tx.Bucket([]byte(songsBucket)).Stats().KeyN
		st.LikedPlaylists = tx.Bucket([]byte(playlistsBucket)).Stats().KeyN
		st.LikedAlbums = tx.Bucket([]byte(albumsBucket)).Stats().KeyN
		return nil
	})
	return st, err
}

// Clear removes every liked item
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear likes: %w", err)
	}
	log.Infof("%s Cleared all liked items", logcolors.LogLikes)
	return nil
}

// put stores item under key unless the key exists
func put[T any](s *Store, bucket, key string, item T) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b.Get([]byte(key)) != nil {
			return nil
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(record[T]{Seq: seq, Item: item})
		if err != nil {
			return err
		}
		added = true
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return false, fmt.Errorf("failed to store %s item: %w", bucket, err)
	}
	return added, nil
}

// list decodes every record in bucket. Undecodable records are skipped.
func list[T any](s *Store, bucket string, setSeq func(*T, uint64)) ([]T, error) {
	items := []T{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).ForEach(func(k, v []byte) error {
			var rec record[T]
			if err := json.Unmarshal(v, &rec); err != nil {
				log.Warnf("%s Skipping undecodable %s record %q: %v", logcolors.LogLikes, bucket, k, err)
				return nil
			}
			setSeq(&rec.Item, rec.Seq)
			items = append(items, rec.Item)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", bucket, err)
	}
	return items, nil
}

func songKey(title, artist string) string {
	return utils.CompositeKey(title, artist)
}

func timestampID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
