package cache

import "fmt"

// Key layout:
// - roomKey(docID):  online members of a room (ZSet<userId, expireAtUnix>, score = expireAt)
// - namesKey(docID): userId -> username for a room (Hash)

const (
	keyRoomFmt  = "presence:room:{docID:%d}"
	keyNamesFmt = "presence:room:names:{docID:%d}"
)

func roomKey(docID uint64) string  { return fmt.Sprintf(keyRoomFmt, docID) }
func namesKey(docID uint64) string { return fmt.Sprintf(keyNamesFmt, docID) }
