package radar

import (
	"strings"
	"sync"

	"github.com/C0okiesl/KopiRadar/internal/model"
)

// userState is the in-memory shadow of one user's persisted radar settings.
// It is only mutated after the corresponding store write succeeds, so the
// cache never diverges from durable state on partial failure.
type userState struct {
	lat       float64
	lng       float64
	filterOn  bool
	filters   []string
	favorites []string
	locations []model.SavedLocation
}

type cache struct {
	mu    sync.RWMutex
	users map[int64]*userState
}

func newCache() *cache {
	return &cache{users: make(map[int64]*userState)}
}

func (c *cache) put(chatID int64, st *userState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[chatID] = st
}

func (c *cache) remove(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, chatID)
}

func (c *cache) has(chatID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.users[chatID]
	return ok
}

func (c *cache) chatIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int64, 0, len(c.users))
	for id := range c.users {
		ids = append(ids, id)
	}
	return ids
}

func (c *cache) coordinate(chatID int64) (lat, lng float64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.users[chatID]
	if !ok {
		return 0, 0, false
	}
	return st.lat, st.lng, true
}

func (c *cache) setCoordinate(chatID int64, lat, lng float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.users[chatID]; ok {
		st.lat = lat
		st.lng = lng
	}
}

func (c *cache) filterOn(chatID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.users[chatID]
	return ok && st.filterOn
}

func (c *cache) setFilterOn(chatID int64, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.users[chatID]; ok {
		st.filterOn = on
	}
}

func (c *cache) filterTerms(chatID int64) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.users[chatID]
	if !ok {
		return nil
	}
	return append([]string(nil), st.filters...)
}

func (c *cache) addFilterTerm(chatID int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.users[chatID]
	if !ok {
		return
	}
	for _, f := range st.filters {
		if f == name {
			return
		}
	}
	st.filters = append(st.filters, name)
}

func (c *cache) removeFilterTerm(chatID int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.users[chatID]; ok {
		st.filters = removeString(st.filters, name)
	}
}

func (c *cache) favorites(chatID int64) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.users[chatID]
	if !ok {
		return nil
	}
	return append([]string(nil), st.favorites...)
}

func (c *cache) addFavorite(chatID int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.users[chatID]
	if !ok {
		return
	}
	for _, f := range st.favorites {
		if f == name {
			return
		}
	}
	st.favorites = append(st.favorites, name)
}

func (c *cache) removeFavorite(chatID int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.users[chatID]; ok {
		st.favorites = removeString(st.favorites, name)
	}
}

func (c *cache) locations(chatID int64) []model.SavedLocation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.users[chatID]
	if !ok {
		return nil
	}
	return append([]model.SavedLocation(nil), st.locations...)
}

func (c *cache) putLocation(chatID int64, loc model.SavedLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.users[chatID]
	if !ok {
		return
	}
	for i, l := range st.locations {
		if strings.EqualFold(l.Name, loc.Name) {
			st.locations[i] = loc
			return
		}
	}
	st.locations = append(st.locations, loc)
}

func (c *cache) removeLocation(chatID int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.users[chatID]
	if !ok {
		return
	}
	for i, l := range st.locations {
		if l.Name == name {
			st.locations = append(st.locations[:i], st.locations[i+1:]...)
			return
		}
	}
}

func removeString(list []string, name string) []string {
	for i, v := range list {
		if v == name {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
