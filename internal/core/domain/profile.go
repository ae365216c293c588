package domain

// LifecycleCommands lists console command templates run around session start and end.
type LifecycleCommands struct {
	BeforeStart []string `mapstructure:"before_start" json:"before_start,omitempty"`
	AfterStart  []string `mapstructure:"after_start" json:"after_start,omitempty"`
	BeforeEnd   []string `mapstructure:"before_end" json:"before_end,omitempty"`
	AfterEnd    []string `mapstructure:"after_end" json:"after_end,omitempty"`
}

// Profile is a named elevation template. Principals in GroupName are eligible for it.
type Profile struct {
	Name            string            `mapstructure:"name" json:"name"`
	GroupName       string            `mapstructure:"group_name" json:"group_name"`
	Permissions     []string          `mapstructure:"permissions" json:"permissions"`
	AllowedCommands []string          `mapstructure:"allowed_commands" json:"allowed_commands,omitempty"`
	Commands        LifecycleCommands `mapstructure:"commands" json:"commands"`
	Duration        int               `mapstructure:"duration" json:"duration"`
}

// DefaultProfiles returns the built-in profile set keyed by name.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"helper": {
			Name:      "helper",
			GroupName: "helper",
			Permissions: []string{
				"commandwhitelist.group.doublelife-helper",
				"minecraft.command.teleport",
				"minecraft.command.msg",
				"essentials.fly",
				"essentials.vanish",
				"essentials.helpop.receive",
				"essentials.socialspy",
			},
			Duration: 1800,
		},
		"moderator": {
			Name:      "moderator",
			GroupName: "moderator",
			Permissions: []string{
				"commandwhitelist.group.doublelife-moderator",
				"minecraft.command.teleport",
				"minecraft.command.gamemode.spectator",
				"minecraft.command.kick",
				"minecraft.command.ban",
				"essentials.fly",
				"essentials.vanish",
				"essentials.god",
				"essentials.heal",
				"essentials.feed",
				"coreprotect.inspect",
				"worldedit.selection.*",
			},
			Duration: 3600,
		},
		"admin": {
			Name:      "admin",
			GroupName: "admin",
			Permissions: []string{
				"commandwhitelist.group.doublelife-admin",
				"minecraft.command.*",
				"essentials.*",
				"worldedit.*",
				"coreprotect.*",
				"luckperms.user.info",
				"luckperms.user.permission.check",
			},
			Duration: 7200,
		},
		"builder": {
			Name:      "builder",
			GroupName: "builder",
			Permissions: []string{
				"commandwhitelist.group.doublelife-builder",
				"minecraft.command.teleport",
				"minecraft.command.gamemode.creative",
				"minecraft.command.gamemode.spectator",
				"minecraft.command.give",
				"minecraft.command.fill",
				"minecraft.command.clone",
				"minecraft.command.setblock",
				"worldedit.*",
				"voxelsniper.*",
				"essentials.fly",
				"essentials.speed",
				"essentials.god",
				"essentials.vanish",
			},
			Duration: 5400,
		},
		"developer": {
			Name:      "developer",
			GroupName: "developer",
			Permissions: []string{
				"commandwhitelist.group.doublelife-developer",
				"*",
			},
			Duration: 0,
		},
	}
}
