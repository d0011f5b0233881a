package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// RMIBProgressKey returns the hash holding a student's category→value assignment
func (r *CacheKeyStruct) RMIBProgressKey(studentID int) string {
	return fmt.Sprintf("student:%d:rmib:progress", studentID)
}

// RMIBStatusKey returns the key holding a student's RMIB status (in_progress, completed)
func (r *CacheKeyStruct) RMIBStatusKey(studentID int) string {
	return fmt.Sprintf("student:%d:rmib:status", studentID)
}

// RMIBSavedAtKey returns the key holding the timestamp of the last autosave
func (r *CacheKeyStruct) RMIBSavedAtKey(studentID int) string {
	return fmt.Sprintf("student:%d:rmib:saved_at", studentID)
}

var CacheKey = NewCacheKeyStruct()
