package db2reader

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// BitsInBytes converts a given number of bits to the minimum number of bytes needed to store them
func BitsInBytes(bits uint32) uint32 {
	return (bits + 7) / 8
}

func CheckMember(object gjson.Result, member string) error {
	if !object.Get(member).Exists() {
		return fmt.Errorf(`definition member %s not found`, member)
	}
	return nil
}
