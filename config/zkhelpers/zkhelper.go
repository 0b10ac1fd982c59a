// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package zkhelpers has tree operations on top of github.com/samuel/go-zookeeper.
package zkhelpers

import (
	"path"
	"strings"

	"github.com/samuel/go-zookeeper/zk"
)

const (
	DefaultRoot                 = "/"
	internalZookeeperNode       = "/zookeeper"
	internalZookeeperNodePrefix = "/zookeeper/"
)

// EnsurePath creates every missing node on the way to p, including p itself. Nodes created
// concurrently by someone else are not an error.
func EnsurePath(conn *zk.Conn, p string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(path.Clean(p), "/"), "/") {
		if part == "" {
			continue
		}

		current = current + "/" + part
		exists, _, err := conn.Exists(current)
		if err != nil {
			return err
		}

		if exists {
			continue
		}

		if _, err = conn.Create(current, []byte{}, 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
			return err
		}
	}

	return nil
}

// ListSubtree walks the tree under pathRoot breadth first. The result is not an atomic
// snapshot: it is assembled from several reads.
func ListSubtree(conn *zk.Conn, pathRoot string) ([]string, error) {
	queue := []string{pathRoot}
	tree := []string{pathRoot}

	for len(queue) > 0 {
		var node string
		node, queue = queue[0], queue[1:]

		children, _, err := conn.Children(node)
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			childPath := path.Join(node, child)
			queue = append(queue, childPath)
			tree = append(tree, childPath)
		}
	}

	return tree, nil
}

// DeleteRecursively deletes pathRoot and everything under it in one multi-op, leaves first.
func DeleteRecursively(conn *zk.Conn, pathRoot string) error {
	tree, err := ListSubtree(conn, pathRoot)
	if err != nil {
		return err
	}

	deletes := make([]interface{}, 0, len(tree))
	for i := len(tree) - 1; i >= 0; i-- {
		if !IsInternalNode(tree[i]) && tree[i] != DefaultRoot {
			deletes = append(deletes, &zk.DeleteRequest{Path: tree[i], Version: -1})
		}
	}

	if len(deletes) == 0 {
		return nil
	}

	_, err = conn.Multi(deletes...)
	return err
}

// IsInternalNode tells you whether path belongs to ZooKeeper itself.
func IsInternalNode(path string) bool {
	return path == internalZookeeperNode || strings.HasPrefix(path, internalZookeeperNodePrefix)
}
