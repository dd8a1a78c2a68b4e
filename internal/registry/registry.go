// Package registry is the static command table: for every supported
// command it records which actor flavor owns it, how many arguments it
// takes, and what to reply when the target key doesn't exist yet.
//
// It mirrors the shape of the teacher's processor.CommandType enum plus
// its per-type registerXExecutors tables, just flattened into data so the
// directory and connection handler can both consult it without importing
// a switch statement.
package registry

import "strings"

// Owning type a command belongs to. Determines which actor flavor
// handles it, and gates type-mismatch checks in the directory.
const (
	OwnString = "string"
	OwnHash   = "hash"
	OwnList   = "list"
	OwnSet    = "set"
	OwnKeys   = "keys"
)

// Arity describes how many argument tokens (excluding command and key)
// a command accepts.
type Arity struct {
	min       int
	max       int
	unbounded bool
	evens     bool
}

// Exact requires precisely n arguments.
func Exact(n int) Arity { return Arity{min: n, max: n} }

// Range requires between min and max arguments, inclusive.
func Range(min, max int) Arity { return Arity{min: min, max: max} }

// AtLeast requires at least min arguments ("many").
func AtLeast(min int) Arity { return Arity{min: min, unbounded: true} }

// Evens requires a positive, even number of arguments (field/value or
// key/value pairs).
func Evens() Arity { return Arity{evens: true} }

// Check reports whether args satisfies the arity rule.
func (a Arity) Check(args []string) bool {
	n := len(args)
	if a.evens {
		return n > 0 && n%2 == 0
	}
	if n < a.min {
		return false
	}
	if a.unbounded {
		return true
	}
	return n <= a.max
}

// DefaultFunc computes the reply for a non-creating command against a
// missing key. A command with no DefaultFunc causes the directory to
// materialize a new actor instead.
type DefaultFunc func(args []string) any

// Spec is one registry entry.
type Spec struct {
	Owning  string
	Arity   Arity
	Default DefaultFunc // nil means "create the key"
}

func val(v any) DefaultFunc { return func([]string) any { return v } }

func hmgetDefault(args []string) any {
	out := make([]string, len(args))
	for i := range args {
		out[i] = "nil"
	}
	return out
}

// table is the static command registry.
var table = map[string]Spec{
	// STRING
	"get":          {Owning: OwnString, Arity: Exact(0), Default: val(nil)},
	"set":          {Owning: OwnString, Arity: Exact(1)},
	"setnx":        {Owning: OwnString, Arity: Exact(1)},
	"getset":       {Owning: OwnString, Arity: Exact(1)},
	"append":       {Owning: OwnString, Arity: Exact(1)},
	"getrange":     {Owning: OwnString, Arity: Exact(2), Default: val("")},
	"setrange":     {Owning: OwnString, Arity: AtLeast(2)},
	"strlen":       {Owning: OwnString, Arity: Exact(0), Default: val(0)},
	"incr":         {Owning: OwnString, Arity: Exact(0)},
	"decr":         {Owning: OwnString, Arity: Exact(0)},
	"incrby":       {Owning: OwnString, Arity: Exact(1)},
	"decrby":       {Owning: OwnString, Arity: Exact(1)},
	"incrbyfloat":  {Owning: OwnString, Arity: Exact(1)},
	"bitcount":     {Owning: OwnString, Arity: Range(0, 2), Default: val(0)},
	"setex":        {Owning: OwnString, Arity: Exact(2)},
	"psetex":       {Owning: OwnString, Arity: Exact(2)},
	"bitop":        {Owning: OwnString, Arity: AtLeast(1)},
	"bitpos":       {Owning: OwnString, Arity: AtLeast(1)},
	"getbit":       {Owning: OwnString, Arity: Exact(1)},
	"setbit":       {Owning: OwnString, Arity: Exact(2)},

	// HASH
	"hget":         {Owning: OwnHash, Arity: Exact(1), Default: val(nil)},
	"hset":         {Owning: OwnHash, Arity: Exact(2)},
	"hsetnx":       {Owning: OwnHash, Arity: Exact(2)},
	"hdel":         {Owning: OwnHash, Arity: AtLeast(1), Default: val(0)},
	"hexists":      {Owning: OwnHash, Arity: Exact(1), Default: val(0)},
	"hlen":         {Owning: OwnHash, Arity: Exact(0), Default: val(0)},
	"hkeys":        {Owning: OwnHash, Arity: Exact(0), Default: val([]string{})},
	"hvals":        {Owning: OwnHash, Arity: Exact(0), Default: val([]string{})},
	"hgetall":      {Owning: OwnHash, Arity: Exact(0), Default: val([]string{})},
	"hmget":        {Owning: OwnHash, Arity: AtLeast(1), Default: hmgetDefault},
	"hmset":        {Owning: OwnHash, Arity: Evens()},
	"hincrby":      {Owning: OwnHash, Arity: Exact(2)},
	"hincrbyfloat": {Owning: OwnHash, Arity: Exact(2)},
	"hscan":        {Owning: OwnHash, Arity: Range(1, 3), Default: val([]string{"0", ""})},

	// LIST
	"lpush":      {Owning: OwnList, Arity: AtLeast(1)},
	"rpush":      {Owning: OwnList, Arity: AtLeast(1)},
	"lpushx":     {Owning: OwnList, Arity: AtLeast(1)},
	"rpushx":     {Owning: OwnList, Arity: AtLeast(1)},
	"lpop":       {Owning: OwnList, Arity: Exact(0), Default: val(nil)},
	"rpop":       {Owning: OwnList, Arity: Exact(0), Default: val(nil)},
	"lindex":     {Owning: OwnList, Arity: Exact(1), Default: val(nil)},
	"lset":       {Owning: OwnList, Arity: Exact(2)},
	"lrem":       {Owning: OwnList, Arity: Exact(1), Default: val(0)},
	"lrange":     {Owning: OwnList, Arity: Exact(2), Default: val([]string{})},
	"ltrim":      {Owning: OwnList, Arity: Exact(2), Default: val("OK")},
	"llen":       {Owning: OwnList, Arity: Exact(0), Default: val(0)},
	"linsert":    {Owning: OwnList, Arity: Exact(3), Default: val(0)},
	"rpoplpush":  {Owning: OwnList, Arity: Exact(1), Default: val(nil)},
	"blpop":      {Owning: OwnList, Arity: Exact(1)},
	"brpop":      {Owning: OwnList, Arity: Exact(1)},
	"brpoplpush": {Owning: OwnList, Arity: Exact(2)},

	// SET
	"sadd":        {Owning: OwnSet, Arity: AtLeast(1)},
	"srem":        {Owning: OwnSet, Arity: AtLeast(1), Default: val(0)},
	"scard":       {Owning: OwnSet, Arity: Exact(0), Default: val(0)},
	"sismember":   {Owning: OwnSet, Arity: Exact(1), Default: val(0)},
	"smembers":    {Owning: OwnSet, Arity: Exact(0), Default: val([]string{})},
	"srandmember": {Owning: OwnSet, Arity: Range(0, 1), Default: val(nil)},
	"spop":        {Owning: OwnSet, Arity: Range(0, 1), Default: val(nil)},
	"sscan":       {Owning: OwnSet, Arity: Range(1, 3), Default: val([]string{"0", ""})},
	"sdiff":       {Owning: OwnSet, Arity: AtLeast(1)},
	"sinter":      {Owning: OwnSet, Arity: AtLeast(1)},
	"sunion":      {Owning: OwnSet, Arity: AtLeast(1)},
	"sdiffstore":  {Owning: OwnSet, Arity: AtLeast(1)},
	"sinterstore": {Owning: OwnSet, Arity: AtLeast(1)},
	"sunionstore": {Owning: OwnSet, Arity: AtLeast(1)},
	"smove":       {Owning: OwnSet, Arity: Exact(2), Default: val(false)},

	// KEYS (directory-owned)
	"exists":     {Owning: OwnKeys, Arity: Exact(1)},
	"type":       {Owning: OwnKeys, Arity: Exact(1)},
	"randomkey":  {Owning: OwnKeys, Arity: Exact(0)},
	"keys":       {Owning: OwnKeys, Arity: Exact(0)},
	"scan":       {Owning: OwnKeys, Arity: Range(1, 3)},
	"ttl":        {Owning: OwnKeys, Arity: Exact(1)},
	"pttl":       {Owning: OwnKeys, Arity: Exact(1)},
	"expire":     {Owning: OwnKeys, Arity: Exact(2)},
	"pexpire":    {Owning: OwnKeys, Arity: Exact(2)},
	"expireat":   {Owning: OwnKeys, Arity: Exact(2)},
	"pexpireat":  {Owning: OwnKeys, Arity: Exact(2)},
	"persist":    {Owning: OwnKeys, Arity: Exact(1)},
	"rename":     {Owning: OwnKeys, Arity: Exact(2)},
	"renamenx":   {Owning: OwnKeys, Arity: Exact(2)},
	"del":        {Owning: OwnKeys, Arity: AtLeast(1)},
	"mget":       {Owning: OwnKeys, Arity: AtLeast(1)},
	"mset":       {Owning: OwnKeys, Arity: Evens()},
	"msetnx":     {Owning: OwnKeys, Arity: Evens()},
	"sort":       {Owning: OwnKeys, Arity: AtLeast(1)},
}

// Lookup returns the spec for a lowercased command name.
func Lookup(cmd string) (Spec, bool) {
	s, ok := table[strings.ToLower(cmd)]
	return s, ok
}

// NodeType returns the owning type for a command, or "" if unknown.
func NodeType(cmd string) string {
	s, ok := Lookup(cmd)
	if !ok {
		return ""
	}
	return s.Owning
}

// Default evaluates the registered default for cmd against args. ok is
// false when the command has no default (the directory must create the
// key instead).
func Default(cmd string, args []string) (value any, ok bool) {
	s, found := Lookup(cmd)
	if !found || s.Default == nil {
		return nil, false
	}
	return s.Default(args), true
}

// ArgsInRange reports whether args satisfies cmd's registered arity.
// Unknown commands always fail.
func ArgsInRange(cmd string, args []string) bool {
	s, ok := Lookup(cmd)
	if !ok {
		return false
	}
	return s.Arity.Check(args)
}

// CategoryOf is an alias for NodeType, named to match the spec's
// vocabulary for the registry's exposed operations.
func CategoryOf(cmd string) string { return NodeType(cmd) }

// NotImplemented lists commands accepted by the registry but not
// executed — they always reply "Not implemented".
var NotImplemented = map[string]bool{
	"bitop":  true,
	"bitpos": true,
	"getbit": true,
	"setbit": true,
	"sort":   true,
}
