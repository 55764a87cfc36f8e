// Package memory sets the Go runtime soft memory limit from the container
// memory limit.
//
// GOMEMLIMIT is not derived from cgroup limits automatically. Pass the
// container limit in bytes as MEMORY_LIMIT (for example via the Kubernetes
// Downward API) and [ConfigureFromEnv] reserves part of it for FFmpeg child
// processes, which run outside the Go heap:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.6"
//
// An explicit GOMEMLIMIT always wins.
package memory
