package parliament

import "fmt"

// Redis key pattern helpers
//
// Key pattern: parliament:{group}:{entity}[:{id}]

// SenateSeqKey returns the key of the multicast sequence counter.
// Pattern: parliament:{group}:senate:seq
func SenateSeqKey(group string) string {
	return fmt.Sprintf("parliament:%s:senate:seq", group)
}

// SenateEntryKey returns the key holding the multicast entry at index.
// Pattern: parliament:{group}:senate:{index}
func SenateEntryKey(group string, index int64) string {
	return fmt.Sprintf("parliament:%s:senate:%d", group, index)
}

// MassQueueKey returns the unicast queue key of an observer.
// Pattern: parliament:{group}:mass:{name}
func MassQueueKey(group, name string) string {
	return fmt.Sprintf("parliament:%s:mass:%s", group, name)
}

// MembersKey returns the key of the durable observer membership hash.
// Pattern: parliament:{group}:members
func MembersKey(group string) string {
	return fmt.Sprintf("parliament:%s:members", group)
}
