// Package library provides the client for the remote document library the
// pipeline ingests from, exposed through the Microsoft Graph v1.0 drives API.
// It lists drives, walks folders recursively, and fetches raw document bytes
// with a content fingerprint so unchanged documents are never re-processed.
package library

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// supportedExtensions lists the file extensions the extraction pipeline can
// handle. Everything else is filtered out at listing time.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".txt":  true,
}

// DocumentRef identifies a document inside a library drive without carrying
// its content. Returned by ListDocuments, consumed by Fetch.
type DocumentRef struct {
	// DriveID is the Graph drive (library) identifier.
	DriveID string

	// ItemID is the Graph item identifier within the drive.
	ItemID string

	// Path is the folder path + file name within the drive, e.g.
	// "/guides/quick-start/page1.png".
	Path string

	// Name is the file name including extension.
	Name string

	// DownloadURL is the pre-authenticated content URL supplied by Graph.
	DownloadURL string

	// Size is the file size in bytes as reported by the drive.
	Size int64
}

// Identity returns the stable library identity of the document: drive plus
// path. Two fetches of the same identity may carry different fingerprints
// when the content changed; the newer version supersedes the older one.
func (r DocumentRef) Identity() string {
	return r.DriveID + ":" + r.Path
}

// Ext returns the lowercase file extension, including the dot.
func (r DocumentRef) Ext() string {
	return strings.ToLower(path.Ext(r.Name))
}

// Supported reports whether the extraction pipeline handles this file type.
func (r DocumentRef) Supported() bool {
	return supportedExtensions[r.Ext()]
}

// Document is a fetched library document: immutable raw bytes plus the
// content fingerprint that keys all downstream caching and indexing.
// A fingerprint mismatch against a cached entry signals a new logical
// version; the Document itself is never mutated.
type Document struct {
	// Ref is the library reference this document was fetched from.
	Ref DocumentRef

	// Bytes is the raw document content.
	Bytes []byte

	// Fingerprint is the hex-encoded SHA-256 of Bytes.
	Fingerprint string
}

// Identity returns the document's library identity (see DocumentRef.Identity).
func (d *Document) Identity() string {
	return d.Ref.Identity()
}

// Fingerprint computes the hex-encoded SHA-256 content hash used as the
// version key for documents throughout the pipeline.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Drive describes one document library within the site.
type Drive struct {
	// ID is the Graph drive identifier.
	ID string

	// Name is the human-readable library name.
	Name string
}
