package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/C0okiesl/KopiRadar/internal/geocode"
	"github.com/C0okiesl/KopiRadar/internal/storage"
)

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Welcome to KopiRadar!
You don't have to do anything to start: the radar already watches the area around your current location.

Location:
/showlocation — list your saved locations
/addlocation <name> <address> — save a location by address
/removelocation <name> — forget a saved location
/setlocation <name> — move the radar to a saved location

Filters (subjects you never want announced):
/addfilter <name...> — add subjects to your exclude list
/removefilter <name...> — remove subjects
/showfilter — show your exclude list
/filteron 1|0 — turn the exclude filter on or off

Favorites:
/addfav <name...>, /removefav <name...>, /showfav

Special locations (named zones shown in digests):
/addspeciallocation <name> <lat> <lng>
/removespeciallocation <name>
/showspeciallocation

/check — poll right now
/stop — stop watching and delete your data`)
}

func (b *Bot) handleAddFilter(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		b.reply(chatID, "Perhaps you can give us a name. /addfilter pidgey rattata")
		return
	}

	if err := b.svc.AddFilterTerms(ctx, chatID, args); err != nil {
		b.log.Error("add filter terms", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not save your filter, please try again.")
		return
	}
	b.reply(chatID, "Added:\n"+bulletList(lowercase(args)))
}

func (b *Bot) handleRemoveFilter(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		b.reply(chatID, "Perhaps you can give us a name. /removefilter pidgey")
		return
	}

	if err := b.svc.RemoveFilterTerms(ctx, chatID, args); err != nil {
		b.log.Error("remove filter terms", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not update your filter, please try again.")
		return
	}
	b.reply(chatID, "Removed:\n"+bulletList(lowercase(args)))
}

func (b *Bot) handleShowFilter(chatID int64) {
	terms := b.svc.FilterTerms(chatID)
	if len(terms) == 0 {
		b.reply(chatID, "Your exclude list is empty. Start by using /addfilter")
		return
	}
	b.reply(chatID, strings.Join(terms, "\n"))
}

func (b *Bot) handleFilterSwitch(ctx context.Context, chatID int64, args []string) {
	on, err := ParseSwitchArg(args)
	if err != nil {
		b.reply(chatID, "Turn on by /filteron 1. Turn off by using /filteron 0")
		return
	}

	if err := b.svc.SetFilterSwitch(ctx, chatID, on); err != nil {
		b.log.Error("set filter switch", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not update the filter switch, please try again.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Updated Filter Switch: %v", on))
}

func (b *Bot) handleAddFav(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		b.reply(chatID, "Perhaps you can give us a name. /addfav eevee snorlax")
		return
	}

	if err := b.svc.AddFavorites(ctx, chatID, args); err != nil {
		b.log.Error("add favorites", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not save your favorites, please try again.")
		return
	}
	b.reply(chatID, "Added:\n"+bulletList(lowercase(args)))
}

func (b *Bot) handleRemoveFav(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		b.reply(chatID, "Perhaps you can give us a name. /removefav eevee")
		return
	}

	if err := b.svc.RemoveFavorites(ctx, chatID, args); err != nil {
		b.log.Error("remove favorites", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not update your favorites, please try again.")
		return
	}
	b.reply(chatID, "Removed:\n"+bulletList(lowercase(args)))
}

func (b *Bot) handleShowFav(chatID int64) {
	favs := b.svc.Favorites(chatID)
	if len(favs) == 0 {
		b.reply(chatID, "No favorites yet. Start by using /addfav")
		return
	}
	b.reply(chatID, strings.Join(favs, "\n"))
}

func (b *Bot) handleAddLocation(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		b.reply(chatID, "Perhaps you can give us a location. /addlocation sp20 20 Science Park Drive")
		return
	}

	name := args[0]
	address := strings.Join(args[1:], " ")

	place, err := b.geo.Forward(ctx, address)
	if errors.Is(err, geocode.ErrNoResult) {
		b.reply(chatID, "We can't find this address. Perhaps you can add more details? (e.g street or blk number)")
		return
	}
	if err != nil {
		b.log.Error("forward geocode", "chat_id", chatID, "address", address, "error", err)
		b.reply(chatID, "We can't get enough info for this address.")
		return
	}

	if err := b.svc.AddSavedLocation(ctx, chatID, name, place.Lat, place.Lng); err != nil {
		b.log.Error("add saved location", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not save this location, please try again.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Added to location list:\n%s as %s", place.FormattedAddress, name))
}

func (b *Bot) handleRemoveLocation(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		b.reply(chatID, "Perhaps you can give us a location. /removelocation sp20")
		return
	}

	if err := b.svc.RemoveSavedLocation(ctx, chatID, args[0]); err != nil {
		b.log.Error("remove saved location", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not remove this location, please try again.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Removed %s from location list", args[0]))
}

func (b *Bot) handleShowLocation(chatID int64) {
	b.reply(chatID, FormatLocationList(b.svc.SavedLocations(chatID)))
}

func (b *Bot) handleSetLocation(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		b.reply(chatID, "Perhaps you can give us a location. /setlocation sp20")
		return
	}

	loc, ok := b.svc.FindSavedLocation(chatID, args[0])
	if !ok {
		b.reply(chatID, "Cannot find a suitable location. Perhaps you want to use /showlocation")
		return
	}

	if err := b.svc.SetCurrentLocation(ctx, chatID, loc.Lat, loc.Lng); err != nil {
		b.log.Error("set current location", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not update your location, please try again.")
		return
	}
	b.reply(chatID, fmt.Sprintf("Update current location to %s %v,%v", loc.Name, loc.Lat, loc.Lng))

	// Out-of-band poll cycle; shares the per-chat serialization domain with
	// scheduled ticks, so it runs off the update loop.
	go b.runCycle(ctx, chatID)
}

func (b *Bot) handleAddSpecial(ctx context.Context, chatID int64, args []string) {
	name, lat, lng, err := ParseSpecialLocationArgs(args)
	if err != nil {
		b.reply(chatID, "/addspeciallocation name lat lng")
		return
	}

	if _, err := b.svc.Fences().Register(ctx, name, lat, lng); err != nil {
		b.log.Error("register geofence", "chat_id", chatID, "name", name, "error", err)
		b.reply(chatID, "Weird coordinate. Unable to add")
		return
	}
	b.reply(chatID, fmt.Sprintf("Added %s to Special Location List", name))
}

func (b *Bot) handleRemoveSpecial(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		b.reply(chatID, "/removespeciallocation name")
		return
	}

	err := b.svc.Fences().Unregister(ctx, args[0])
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("No special location named %s.", args[0]))
		return
	}
	if err != nil {
		b.log.Error("unregister geofence", "chat_id", chatID, "name", args[0], "error", err)
		b.reply(chatID, "Could not remove this special location, please try again.")
		return
	}
	b.reply(chatID, "Removed")
}

func (b *Bot) handleShowSpecial(ctx context.Context, chatID int64) {
	names, err := b.svc.Fences().Names(ctx)
	if err != nil {
		b.log.Error("list geofences", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not list special locations, please try again.")
		return
	}
	if len(names) == 0 {
		b.reply(chatID, "No special location has been added.")
		return
	}
	b.reply(chatID, strings.Join(names, "\n"))
}

func (b *Bot) handleCheck(ctx context.Context, chatID int64) {
	go b.runCycle(ctx, chatID)
}

func (b *Bot) handleStop(ctx context.Context, chatID int64) {
	if b.watcher != nil {
		b.watcher.RemoveWatch(chatID)
	}
	if err := b.svc.RemoveUser(ctx, chatID); err != nil {
		b.log.Error("remove user", "chat_id", chatID, "error", err)
		b.reply(chatID, "Could not remove your data, please try again.")
		return
	}
	b.reply(chatID, "Stopped watching. Your data has been removed.")
}

func (b *Bot) runCycle(ctx context.Context, chatID int64) {
	msg, err := b.svc.RunCycle(ctx, chatID)
	if err != nil {
		b.log.Error("manual cycle", "chat_id", chatID, "error", err)
		return
	}
	if msg != "" {
		b.SendMessage(chatID, msg)
	}
}
