// Package storage manages the download directory.
//
// Images are written to a sibling ".part" file and renamed into place once
// the body has been copied completely, so an interrupted or failed download
// never leaves a truncated image under its final name. Plan decides the
// target path of every link before any download starts; see Manager.Plan for
// the collision rule.
package storage
