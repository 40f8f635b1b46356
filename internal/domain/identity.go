package domain

// Identity is what the identity service asserts about a credential. It lives
// only for the request that resolved it.
type Identity struct {
	UserID      int64
	Blacklisted bool
}

// AccountID maps a user onto their single account.
func (i Identity) AccountID() int64 {
	return i.UserID
}
