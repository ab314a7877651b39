package stages

import (
	"errors"
	"fmt"
	"regexp"

	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
)

// KindUserHost parses the general log user_host column.
const KindUserHost = "user_host"

// ErrUnparsedUserHost is returned for a user_host value that does not match
// "name[uname] @ host [ip]".
var ErrUnparsedUserHost = errors.New("could not parse user_host")

var userHostRE = regexp.MustCompile(`^.*\[(?P<uname>.*)\] @ (?P<host>.*) \[(?P<ip>.*)\]`)

// UserHost splits user_host into user, host and ip and skips rows whose user,
// host or ip is on a reject list.
type UserHost struct {
	pipeline.Decl
	usersReject  map[string]struct{}
	hostsReject  map[string]struct{}
	ipReject     map[string]struct{}
	skipUnparsed bool
}

// NewUserHost builds the stage. Reject lists may be empty.
func NewUserHost(usersReject, hostsReject, ipReject []string, skipUnparsed bool) *UserHost {
	return &UserHost{
		Decl: pipeline.Decl{
			Label: KindUserHost,
			In:    []string{"user_host"},
			Out:   []string{"user", "host", "ip"},
		},
		usersReject:  set(usersReject),
		hostsReject:  set(hostsReject),
		ipReject:     set(ipReject),
		skipUnparsed: skipUnparsed,
	}
}

func newUserHost(opts config.Options) (pipeline.Stage, error) {
	u := NewUserHost(
		opts.StringSlice("users_reject"),
		opts.StringSlice("hosts_reject"),
		opts.StringSlice("ip_reject"),
		opts.Bool("skip_unparsed", false),
	)
	u.Label = label(KindUserHost, opts)
	return u, nil
}

// Process implements pipeline.Stage.
func (u *UserHost) Process(rec records.Record) (pipeline.Result, error) {
	raw := rec.String("user_host")
	m := userHostRE.FindStringSubmatch(raw)
	if m == nil {
		if u.skipUnparsed {
			return pipeline.Skip(), nil
		}
		return pipeline.Result{}, fmt.Errorf("%w: %q", ErrUnparsedUserHost, raw)
	}
	user, host, ip := m[1], m[2], m[3]

	if _, ok := u.usersReject[user]; ok {
		return pipeline.Skip(), nil
	}
	if _, ok := u.hostsReject[host]; ok {
		return pipeline.Skip(), nil
	}
	if _, ok := u.ipReject[ip]; ok {
		return pipeline.Skip(), nil
	}
	return pipeline.Keep(user, host, ip), nil
}
