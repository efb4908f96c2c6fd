// Package models holds the data types shared across packages.
package models

import "time"

// Article is one record of the managed JSON collection.
// Field order matches the serialized layout of the collection file.
type Article struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	DescriptionFull string   `json:"description_full"`
	Image           string   `json:"image"`
	Categories      []string `json:"categories"`
	Time            string   `json:"time"`
	YouTubeURL      string   `json:"youtube_url"`
	HTMLContent     string   `json:"html_content"`
	OtherImages     []string `json:"other_images"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

// Clone returns a deep copy of a.
func (a Article) Clone() Article {
	out := a
	out.Categories = append([]string{}, a.Categories...)
	out.OtherImages = append([]string{}, a.OtherImages...)
	return out
}

// BackupRecord describes one exported snapshot.
type BackupRecord struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredFile is a file held in the local backup directory.
type StoredFile struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}
