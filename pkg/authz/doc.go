// Package authz holds the pure decision functions of the core: the
// organization boundary guard and the role capability table. Nothing in this
// package touches storage; callers load entities first and ask authz whether
// the action may proceed.
package authz
