package domain

import (
	"sync"
)

type Context struct {
	mu     sync.RWMutex
	values map[string]interface{}
	data   map[string]interface{}
}

func NewContext(initial map[string]interface{}) *Context {
	values := make(map[string]interface{}, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &Context{
		values: values,
		data:   make(map[string]interface{}),
	}
}

func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.values[key]
	return value, ok
}

func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = value
}

func (c *Context) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		snapshot[k] = v
	}
	return snapshot
}

func (c *Context) GetData(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.data[key]
}

func (c *Context) SetData(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = value
}
