package gid

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

var (
	baseBigInt = big.NewInt(62)
)

type ID interface {
	GetType() string
	GetUUID() uuid.UUID
	String() string
}

// Base ID structure. Embed this in your own IDs.
type baseID uuid.UUID

func (bid baseID) GetUUID() uuid.UUID {
	return uuid.UUID(bid)
}

func toText(gid ID) ([]byte, error) {
	return []byte(String(gid)), nil
}

func fromText(dst interface{}, txt []byte) error {
	return ParseIDAs(string(txt), dst)
}

// String renders an ID as "<tag>_<base62 uuid>".
func String(gid ID) string {
	return fmt.Sprintf("%s_%s", gid.GetType(), encodeUUID(gid.GetUUID()))
}

func assignTo(assigner ID, dstID interface{}) error {
	v := reflect.ValueOf(assigner)
	dst := reflect.ValueOf(dstID)

	if reflect.PtrTo(v.Type()) != dst.Type() {
		return errors.Errorf("mismatched assignment types, can not assign %v to %v", v.Type(), dst.Type())
	}
	dst.Elem().Set(v)
	return nil
}

func encodeUUID(u uuid.UUID) string {
	uuidBs := [16]byte(u)
	n := new(big.Int).SetBytes(uuidBs[:])
	zero := big.NewInt(0)

	destBs := make([]byte, 0, 22)
	for n.Cmp(zero) > 0 {
		r := new(big.Int)
		n.DivMod(n, baseBigInt, r)
		destBs = append(destBs, alphabet[r.Int64()])
	}
	for i, j := 0, len(destBs)-1; i < j; i, j = i+1, j-1 {
		destBs[i], destBs[j] = destBs[j], destBs[i]
	}

	// 22 characters is the maximum length of an encoded UUID.
	return fmt.Sprintf("%022s", string(destBs))
}

func decodeUUID(s string) (uuid.UUID, error) {
	var bigI big.Int
	for _, c := range []byte(s) {
		i := strings.IndexByte(alphabet, c)
		if i < 0 {
			return uuid.Nil, errors.Errorf("unexpected character %c in base62 literal", c)
		}
		bigI.Mul(&bigI, baseBigInt)
		bigI.Add(&bigI, big.NewInt(int64(i)))
	}

	uuidBytes := bigI.Bytes()
	if len(uuidBytes) > 16 {
		return uuid.Nil, errors.Errorf("cannot have more than 16 bytes of UUID")
	} else if len(uuidBytes) < 16 {
		// Zero padding goes to the most significant position.
		tmp := make([]byte, 16)
		copy(tmp[16-len(uuidBytes):], uuidBytes)
		uuidBytes = tmp
	}

	return uuid.FromBytes(uuidBytes)
}
